package web

import (
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/lofoph/internal/client"
	"github.com/erazemk/lofoph/internal/model"
)

// latestCount is how many items of each type the home page shows.
const latestCount = 4

// HomePage handles GET /.
func (s *Server) HomePage(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())

	var lost, found []model.Item
	g, ctx := errgroup.WithContext(r.Context())
	for _, sec := range []struct {
		itemType string
		dst      *[]model.Item
	}{
		{model.ItemTypeLost, &lost},
		{model.ItemTypeFound, &found},
	} {
		g.Go(func() error {
			items, err := v.Client.ListItems(ctx, client.ListQuery{Page: 1, Limit: latestCount, ItemType: sec.itemType})
			if err != nil {
				// An empty section is shown instead.
				slog.Error("failed to load latest items", "type", sec.itemType, "error", err)
				return nil
			}
			*sec.dst = items
			return nil
		})
	}
	g.Wait()

	s.Templates.Render(w, http.StatusOK, "home.html", &struct {
		PageData
		Lost  []model.Item
		Found []model.Item
	}{
		PageData: s.page(w, r, "Lost and Found"),
		Lost:     lost,
		Found:    found,
	})
}
