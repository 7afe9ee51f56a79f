package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/erazemk/lofoph/internal/client"
	"github.com/erazemk/lofoph/internal/listing"
	"github.com/erazemk/lofoph/internal/model"
	"github.com/erazemk/lofoph/internal/refdata"
	"github.com/erazemk/lofoph/internal/session"
)

// filterKeys are the query parameters of the listing filter form.
var filterKeys = []string{"search", "category", "city", "province"}

type listingPage struct {
	PageData
	ItemType   string
	Listing    listing.Snapshot
	Categories []string
	Cities     []refdata.City
	Provinces  []refdata.Province
	MoreAction string
}

// ListingPage handles GET /lost and GET /found. Submitting the filter form
// reloads the listing from page 1; a plain visit shows what the visitor
// has already loaded.
func (s *Server) ListingPage(itemType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := visitorFrom(r.Context())
		c := v.Listing(itemType)

		var err error
		snap := c.Snapshot()
		if f, ok := filtersFrom(r.URL.Query()); ok {
			if !snap.Loaded || f != snap.Filters {
				err = c.ApplyFilters(r.Context(), f)
			}
		} else if !snap.Loaded {
			err = c.Refresh(r.Context())
		}
		logListingError(itemType, err)

		s.Templates.Render(w, http.StatusOK, "listing.html", &listingPage{
			PageData:   s.page(w, r, typeTitle(itemType)),
			ItemType:   itemType,
			Listing:    c.Snapshot(),
			Categories: model.Categories,
			Cities:     s.RefData.Cities,
			Provinces:  s.RefData.Provinces,
			MoreAction: "/" + itemType + "/more",
		})
	}
}

// LoadMore handles POST /lost/more and POST /found/more.
func (s *Server) LoadMore(itemType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := visitorFrom(r.Context())
		s.loadMore(r, v, v.Listing(itemType), itemType)
		s.redirect(w, r, "/"+itemType)
	}
}

func (s *Server) loadMore(r *http.Request, v *Visitor, c *listing.Controller, name string) {
	err := c.LoadMore(r.Context())
	switch {
	case errors.Is(err, listing.ErrNotLoaded):
		err = c.Refresh(r.Context())
	case errors.Is(err, listing.ErrExhausted):
		v.Notify(session.NoticeSuccess, "No more items")
		return
	}
	logListingError(name, err)
}

func logListingError(name string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, listing.ErrFetchInFlight), errors.Is(err, listing.ErrStale):
		slog.Debug("listing busy", "listing", name, "error", err)
	default:
		slog.Warn("listing fetch interrupted", "listing", name, "error", err)
	}
}

// filtersFrom reads the filter form. ok is false when the request did not
// come from the form.
func filtersFrom(q url.Values) (model.Filters, bool) {
	ok := false
	for _, k := range filterKeys {
		if q.Has(k) {
			ok = true
		}
	}
	f := model.Filters{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		City:     q.Get("city"),
		Province: q.Get("province"),
	}
	return f.Normalize(), ok
}

func typeTitle(itemType string) string {
	if itemType == model.ItemTypeFound {
		return "Found items"
	}
	return "Lost items"
}

// ItemPage handles GET /items/{id}. Contact details are only rendered for
// logged-in visitors.
func (s *Server) ItemPage(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())

	item, err := v.Client.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			s.message(w, r, http.StatusNotFound, "Not found", "This item does not exist or has been removed.")
			return
		}
		slog.Error("failed to get item", "item", r.PathValue("id"), "error", err)
		s.message(w, r, http.StatusBadGateway, "Error", "The item could not be loaded. Please try again.")
		return
	}

	s.Templates.Render(w, http.StatusOK, "item.html", &struct {
		PageData
		Item *model.Item
	}{
		PageData: s.page(w, r, item.Name),
		Item:     item,
	})
}
