// Package http exposes the ledger as a JSON API.
//
// This file implements utilities for parsing and validating request data:
// JSON bodies, unit addresses and month keys taken from the URL.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// errMalformedBody marks bodies that are not the JSON the handler expects.
var errMalformedBody = errors.New("malformed request body")

// UnitRef addresses one unit in the URL.
type UnitRef struct {
	Category core.UnitCategory
	ID       int
}

// DecodeJSON reads exactly one JSON object into dst. Unknown fields and
// trailing data are rejected. Domain parse errors stay in the chain.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

// ParseUnitRef reads {category} and {id} from the route.
func ParseUnitRef(r *http.Request) (UnitRef, error) {
	cat, err := core.ParseUnitCategory(chi.URLParam(r, "category"))
	if err != nil {
		return UnitRef{}, err
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return UnitRef{}, fmt.Errorf("%w: %q", core.ErrInvalidUnitID, chi.URLParam(r, "id"))
	}
	return UnitRef{Category: cat, ID: id}, nil
}

// ParseMonthParam reads a YYYY-MM route parameter.
func ParseMonthParam(r *http.Request, name string) (core.MonthKey, error) {
	return core.ParseMonthKey(chi.URLParam(r, name))
}

// ParseMonthQuery reads ?month=YYYY-MM, defaulting to the month of now.
func ParseMonthQuery(query url.Values, now time.Time) (core.MonthKey, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return core.CurrentMonthKey(now), nil
	}
	return core.ParseMonthKey(v)
}

// ParseBoolQuery reads a boolean flag such as ?wait=true. Absent or invalid
// values are false.
func ParseBoolQuery(query url.Values, name string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(query.Get(name)))
	return err == nil && b
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
