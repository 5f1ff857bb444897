package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// formatRequest mirrors the OpenAPI EventFormat schema.
type formatRequest struct {
	NumberOfAttempts int    `json:"number_of_attempts" validate:"min=1,max=5"`
	SortBy           string `json:"sort_by" validate:"required,oneof=best average"`
}

type cutoffRequest struct {
	NumberOfAttempts int `json:"number_of_attempts" validate:"min=1,max=4"`
	AttemptResult    int `json:"attempt_result" validate:"gt=0"`
}

type timeLimitRequest struct {
	Centiseconds        int      `json:"centiseconds" validate:"gt=0"`
	CumulativeRoundIDs  []string `json:"cumulative_round_ids" validate:"omitempty,dive,required"`
	ElapsedCentiseconds int      `json:"elapsed_centiseconds" validate:"min=0"`
}

// entryRequest mirrors the OpenAPI Entry schema for POST /results/preview.
type entryRequest struct {
	RoundID   string            `json:"round_id" validate:"required,max=128"`
	PersonID  string            `json:"person_id" validate:"required,max=128"`
	EventID   string            `json:"event_id" validate:"required,max=32"`
	Attempts  []int             `json:"attempts" validate:"max=5"`
	Format    formatRequest     `json:"format"`
	Cutoff    *cutoffRequest    `json:"cutoff,omitempty"`
	TimeLimit *timeLimitRequest `json:"time_limit,omitempty"`
}

// submitRequest mirrors the OpenAPI Submission schema for POST /results.
type submitRequest struct {
	entryRequest
	SubmissionID string `json:"submission_id" validate:"omitempty,max=128"`
	Confirmed    bool   `json:"confirmed"`
}

func (e *entryRequest) toEntry() model.Entry {
	out := model.Entry{
		RoundID:  strings.TrimSpace(e.RoundID),
		PersonID: strings.TrimSpace(e.PersonID),
		EventID:  strings.TrimSpace(e.EventID),
		Attempts: attempt.FromInts(e.Attempts),
		Format: model.EventFormat{
			NumberOfAttempts: e.Format.NumberOfAttempts,
			SortBy:           model.SortBy(e.Format.SortBy),
		},
	}
	if e.Cutoff != nil {
		out.Cutoff = &model.Cutoff{
			NumberOfAttempts: e.Cutoff.NumberOfAttempts,
			AttemptResult:    attempt.Result(e.Cutoff.AttemptResult),
		}
	}
	if e.TimeLimit != nil {
		out.TimeLimit = &model.TimeLimit{
			Centiseconds:        e.TimeLimit.Centiseconds,
			CumulativeRoundIDs:  e.TimeLimit.CumulativeRoundIDs,
			ElapsedCentiseconds: e.TimeLimit.ElapsedCentiseconds,
		}
	}
	return out
}

func (s *submitRequest) toSubmission() model.Submission {
	return model.Submission{
		SubmissionID: strings.TrimSpace(s.SubmissionID),
		Entry:        s.toEntry(),
		Confirmed:    s.Confirmed,
	}
}

// decode reads a JSON body into v and validates its struct tags.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return describeValidation(err)
	}
	return nil
}

// describeValidation turns validator output into a client-facing message.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "submitRequest.")
		field = strings.TrimPrefix(field, "entryRequest.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
