// Package report validates and submits new lost or found item reports.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/lofoph/internal/imaging"
	"github.com/erazemk/lofoph/internal/model"
	"github.com/erazemk/lofoph/internal/session"
)

// DateLayout is the format of the date form field.
const DateLayout = "2006-01-02"

// Display messages for rejected reports.
const (
	MsgMissingFields = "Please fill in all required fields"
	MsgTooManyImages = "Maximum 3 images allowed"
	MsgInvalidDate   = "Please enter a valid date"
	MsgInvalidReward = "Reward must be a positive number"
	MsgInvalidImage  = "Only JPEG and PNG images are allowed"
	msgSubmitFailed  = "Failed to create item"
)

// ValidationError is a report rejected before anything was sent.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid report: %s: %v", e.Message, e.Err)
	}
	return "invalid report: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Message returns the text to show for an error returned by Submit.
func Message(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var fe *session.FlowError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return msgSubmitFailed
}

// Validate checks the required fields and the image count.
func Validate(r model.Report) error {
	required := []string{r.Name, r.Category, r.City, r.Province, r.Contact}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Message: MsgMissingFields}
		}
	}
	if len(r.Images) > model.MaxReportImages {
		return &ValidationError{Message: MsgTooManyImages}
	}
	return nil
}

// Upload is one photo attached to the report form.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// Draft is the report form as submitted.
type Draft struct {
	Name        string
	Description string
	Category    string
	Location    string
	City        string
	Province    string
	Date        string
	Reward      string
	ContactType string
	Contact     string
	Images      []Upload
}

// Submitter posts a validated report on behalf of the logged-in user.
type Submitter interface {
	SubmitReport(ctx context.Context, r model.Report) error
}

// Flow turns a draft into a report and submits it.
type Flow struct {
	submit Submitter
	now    func() time.Time
}

// NewFlow creates a flow that submits through s.
func NewFlow(s Submitter) *Flow {
	return &Flow{submit: s, now: time.Now}
}

// Submit validates the draft, prepares its photos and submits it as an
// item of itemType. Validation failures never reach the network.
func (f *Flow) Submit(ctx context.Context, itemType string, d Draft) error {
	r, err := f.build(itemType, d)
	if err != nil {
		return err
	}

	// Count first so oversized uploads are not decoded.
	placeholder := r
	placeholder.Images = make([]model.Image, len(d.Images))
	if err := Validate(placeholder); err != nil {
		return err
	}

	r.Images, err = prepare(d.Images)
	if err != nil {
		return err
	}

	if err := f.submit.SubmitReport(ctx, r); err != nil {
		return err
	}
	return nil
}

func (f *Flow) build(itemType string, d Draft) (model.Report, error) {
	r := model.Report{
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		ItemType:    model.ParseItemType(itemType),
		Location:    strings.TrimSpace(d.Location),
		City:        strings.TrimSpace(d.City),
		Province:    strings.TrimSpace(d.Province),
		ContactType: strings.TrimSpace(d.ContactType),
		Contact:     strings.TrimSpace(d.Contact),
		Category:    strings.TrimSpace(d.Category),
	}
	if r.ContactType == "" {
		r.ContactType = model.ContactPhone
	}

	date := strings.TrimSpace(d.Date)
	if date == "" {
		r.Date = f.now()
	} else {
		t, err := time.ParseInLocation(DateLayout, date, time.Local)
		if err != nil {
			return r, &ValidationError{Message: MsgInvalidDate, Err: err}
		}
		r.Date = t
	}

	reward := strings.TrimSpace(d.Reward)
	if r.ItemType == model.ItemTypeLost && reward != "" {
		v, err := strconv.ParseFloat(reward, 64)
		if err != nil || v < 0 {
			return r, &ValidationError{Message: MsgInvalidReward, Err: err}
		}
		r.Reward = v
	}
	return r, nil
}

func prepare(uploads []Upload) ([]model.Image, error) {
	images := make([]model.Image, 0, len(uploads))
	for _, u := range uploads {
		img, err := prepareOne(u)
		if err != nil {
			slog.Warn("rejecting report image", "file", u.Filename, "error", err)
			return nil, &ValidationError{Message: MsgInvalidImage, Err: err}
		}
		images = append(images, img)
	}
	return images, nil
}

func prepareOne(u Upload) (model.Image, error) {
	rc, err := u.Open()
	if err != nil {
		return model.Image{}, fmt.Errorf("opening %s: %w", u.Filename, err)
	}
	defer func() { _ = rc.Close() }()
	return imaging.Prepare(u.Filename, rc)
}
