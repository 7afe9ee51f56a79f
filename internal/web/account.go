package web

import (
	"net/http"

	"github.com/erazemk/lofoph/internal/guard"
	"github.com/erazemk/lofoph/internal/listing"
	"github.com/erazemk/lofoph/internal/model"
)

// AccountPage handles GET /account: the profile and the items the user
// has reported.
func (s *Server) AccountPage(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	u := v.Session.User()
	if u == nil {
		// The cookie the guard let through no longer names a session.
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
		return
	}

	c := v.Mine(u.ID)
	if !c.Snapshot().Loaded {
		logListingError("account", c.Refresh(r.Context()))
	}

	s.Templates.Render(w, http.StatusOK, "account.html", &struct {
		PageData
		Account    *model.User
		Listing    listing.Snapshot
		MoreAction string
	}{
		PageData:   s.page(w, r, "My account"),
		Account:    u,
		Listing:    c.Snapshot(),
		MoreAction: "/account/more",
	})
}

// AccountMore handles POST /account/more.
func (s *Server) AccountMore(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	if u := v.Session.User(); u != nil {
		s.loadMore(r, v, v.Mine(u.ID), "account")
	}
	s.redirect(w, r, "/account")
}
