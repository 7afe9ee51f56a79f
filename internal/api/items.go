package api

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/lofoph/internal/imaging"
	"github.com/erazemk/lofoph/internal/model"
	"github.com/erazemk/lofoph/internal/store"
)

// imagePath is where stored photos are served from.
const imagePath = "/api/v1/images/"

// maxFormMemory is held in memory while parsing multipart forms; the rest
// spills to temporary files.
const maxFormMemory = 8 << 20

// maxCreateBody caps a whole report upload.
const maxCreateBody = model.MaxReportImages*imaging.MaxInputSize + 1<<20

const msgNoDocument = "No document found with that ID"

// ItemsHandler serves the item collection and its photos.
type ItemsHandler struct {
	DB *sql.DB
}

// List handles GET /api/v1/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"), 1)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid page")
		return
	}
	limit, err := queryInt(q.Get("limit"), store.MaxLimit)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, store.ItemQuery{
		Page:     page,
		Limit:    limit,
		ItemType: q.Get("itemType"),
		Search:   q.Get("search"),
		Category: q.Get("category"),
		City:     q.Get("city"),
		Province: q.Get("province"),
		User:     q.Get("user"),
	})
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}

	for i := range items {
		publishImages(&items[i])
	}
	jsonList(w, items, len(items))
}

// Get handles GET /api/v1/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, msgNoDocument)
		return
	}

	publishImages(item)
	jsonSuccess(w, http.StatusOK, map[string]any{"doc": item})
}

// Create handles POST /api/v1/items. The body is a multipart form with one
// "images" part per photo; the reporter is taken from the session, not
// from the form.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, msgNotLoggedIn)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	report, err := parseReport(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	report.User = claims.UserID

	files := r.MultipartForm.File["images"]
	if len(files) > model.MaxReportImages {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("Maximum %d images allowed", model.MaxReportImages))
		return
	}

	images := make([]store.NewImage, 0, len(files))
	for _, fh := range files {
		data, err := readImage(fh)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		images = append(images, store.NewImage{MIME: "image/jpeg", Data: data})
	}

	item, err := store.CreateItem(r.Context(), h.DB, report, images)
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}

	slog.Info("item reported", "item", item.ID, "type", item.ItemType, "user", claims.UserID, "images", len(images))
	publishImages(item)
	jsonSuccess(w, http.StatusCreated, map[string]any{"doc": item})
}

// Image handles GET /api/v1/images/{id}.
func (h *ItemsHandler) Image(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetImage(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get image", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.Write(data)
}

func parseReport(r *http.Request) (model.Report, error) {
	get := func(key string) string { return strings.TrimSpace(r.FormValue(key)) }

	report := model.Report{
		Name:        get("name"),
		Description: get("description"),
		ItemType:    get("itemType"),
		Location:    get("location"),
		City:        get("city"),
		Province:    get("province"),
		ContactType: get("contactType"),
		Contact:     get("contact"),
		Category:    get("category"),
	}

	if !model.IsItemType(report.ItemType) {
		return report, errors.New("itemType must be lost or found")
	}
	if report.Name == "" || report.Category == "" || report.City == "" || report.Province == "" || report.Contact == "" {
		return report, errors.New("Please fill in all required fields")
	}
	if report.ContactType == "" {
		report.ContactType = model.ContactPhone
	}

	report.Date = time.Now().UTC()
	if s := get("date"); s != "" {
		d, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return report, errors.New("invalid date")
		}
		report.Date = d
	}

	if s := get("reward"); s != "" && report.ItemType == model.ItemTypeLost {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return report, errors.New("invalid reward")
		}
		report.Reward = v
	}
	return report, nil
}

func readImage(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > imaging.MaxInputSize {
		return nil, fmt.Errorf("image %s is too large", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("reading image %s", fh.Filename)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, imaging.MaxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image %s", fh.Filename)
	}
	data, err := imaging.Reencode(raw)
	if err != nil {
		return nil, fmt.Errorf("image %s: %v", fh.Filename, err)
	}
	return data, nil
}

// publishImages replaces stored image IDs with the paths they are served at.
func publishImages(item *model.Item) {
	for i, id := range item.Images {
		item.Images[i] = imagePath + id
	}
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}
