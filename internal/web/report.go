package web

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/lofoph/internal/imaging"
	"github.com/erazemk/lofoph/internal/model"
	"github.com/erazemk/lofoph/internal/refdata"
	"github.com/erazemk/lofoph/internal/report"
	"github.com/erazemk/lofoph/internal/session"
)

// maxReportBody caps a report upload. The image count is checked after
// parsing, so room is left for one image too many.
const maxReportBody = (model.MaxReportImages+1)*imaging.MaxInputSize + 1<<20

// maxFormMemory is held in memory while parsing the report form; larger
// uploads spill to temporary files.
const maxFormMemory = 8 << 20

type reportPage struct {
	PageData
	ItemType     string
	Draft        report.Draft
	Today        string
	MaxImages    int
	Categories   []string
	ContactTypes []string
	Cities       []refdata.City
	Provinces    []refdata.Province
}

func (s *Server) reportPage(w http.ResponseWriter, r *http.Request, itemType string, d report.Draft, errMsg string) *reportPage {
	pd := s.page(w, r, "Report a "+itemType+" item")
	pd.Error = errMsg
	return &reportPage{
		PageData:     pd,
		ItemType:     itemType,
		Draft:        d,
		Today:        time.Now().Format(report.DateLayout),
		MaxImages:    model.MaxReportImages,
		Categories:   model.Categories,
		ContactTypes: model.ContactTypes,
		Cities:       s.RefData.Cities,
		Provinces:    s.RefData.Provinces,
	}
}

// ReportPage handles GET /report/{type}.
func (s *Server) ReportPage(w http.ResponseWriter, r *http.Request) {
	itemType := model.ParseItemType(r.PathValue("type"))
	d := report.Draft{ContactType: model.ContactPhone}
	s.Templates.Render(w, http.StatusOK, "report.html", s.reportPage(w, r, itemType, d, ""))
}

// ReportSubmit handles POST /report/{type}.
func (s *Server) ReportSubmit(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	itemType := model.ParseItemType(r.PathValue("type"))

	r.Body = http.MaxBytesReader(w, r.Body, maxReportBody)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		slog.Warn("invalid report form", "error", err)
		s.Templates.Render(w, http.StatusBadRequest, "report.html",
			s.reportPage(w, r, itemType, report.Draft{}, "The form could not be read. Images may be too large."))
		return
	}
	defer r.MultipartForm.RemoveAll()

	d := report.Draft{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Location:    r.FormValue("location"),
		City:        r.FormValue("city"),
		Province:    r.FormValue("province"),
		Date:        r.FormValue("date"),
		Reward:      r.FormValue("reward"),
		ContactType: r.FormValue("contactType"),
		Contact:     r.FormValue("contact"),
	}
	for _, fh := range r.MultipartForm.File["images"] {
		// Browsers send an empty part when no file was chosen.
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}
		d.Images = append(d.Images, report.Upload{
			Filename: fh.Filename,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	if err := v.Reports.Submit(r.Context(), itemType, d); err != nil {
		d.Images = nil
		s.Templates.Render(w, http.StatusOK, "report.html", s.reportPage(w, r, itemType, d, report.Message(err)))
		return
	}

	v.Notify(session.NoticeSuccess, "Item reported successfully")
	// The new item belongs at the top of its listing.
	if err := v.Listing(itemType).Refresh(r.Context()); err != nil {
		logListingError(itemType, err)
	}
	s.redirect(w, r, session.LandingPath)
}
