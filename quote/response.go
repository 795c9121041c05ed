package quote

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/sugawarayuuta/sonnet"
)

var errMalformedResponse = errors.New("malformed aggregator response")

type responseKind int

const (
	responseUnknown responseKind = iota
	responseQuote
	responseError
)

// wireAmount accepts both "123" and 123 on the wire
type wireAmount struct {
	value uint64
	set   bool
}

func (a *wireAmount) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("amount %q: %w", b, err)
	}
	a.value, a.set = v, true
	return nil
}

// wireFloat accepts both "0.01" and 0.01 on the wire
type wireFloat float64

func (f *wireFloat) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("float %q: %w", b, err)
	}
	*f = wireFloat(v)
	return nil
}

type rawResponse struct {
	OutAmount      wireAmount `json:"outAmount"`
	FeeAmount      wireAmount `json:"feeAmount"`
	PriceImpactPct wireFloat  `json:"priceImpactPct"`
	RouteLabel     []string   `json:"routeLabel"`
	Error          string     `json:"error"`
	ErrorCode      string     `json:"errorCode"`
}

// legResponse is the decoded aggregator reply, tagged by kind
type legResponse struct {
	kind        responseKind
	outAmount   uint64
	feeAmount   uint64
	priceImpact float64 // fraction
	venue       string
	message     string
}

func parseLegResponse(body []byte) (legResponse, error) {
	var raw rawResponse
	if err := sonnet.Unmarshal(body, &raw); err != nil {
		return legResponse{}, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}

	switch {
	case raw.Error != "" || raw.ErrorCode != "":
		msg := raw.Error
		if raw.ErrorCode != "" {
			msg = fmt.Sprintf("%s (%s)", msg, raw.ErrorCode)
		}
		return legResponse{kind: responseError, message: msg}, nil
	case raw.OutAmount.set:
		if raw.PriceImpactPct < 0 {
			return legResponse{}, fmt.Errorf("%w: negative price impact", errMalformedResponse)
		}
		venue := "aggregator"
		if len(raw.RouteLabel) > 0 {
			venue = raw.RouteLabel[0]
		}
		return legResponse{
			kind:        responseQuote,
			outAmount:   raw.OutAmount.value,
			feeAmount:   raw.FeeAmount.value,
			priceImpact: float64(raw.PriceImpactPct) / 100,
			venue:       venue,
		}, nil
	}
	return legResponse{kind: responseUnknown}, nil
}
