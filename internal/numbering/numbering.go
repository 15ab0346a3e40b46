// Package numbering derives human-readable sequential document codes.
//
// Codes encode {YYMM}-{TypeLetter}{5-digit sequence}, e.g. 2512-F00005, with
// an optional long form appending a client code and a sanitized group-leader
// name. The next sequence is derived by scanning every existing number of
// the tenant/type, including legacy formats, and taking max+1; the scan and
// the insert must share one atomic unit (the repositories hold an advisory
// lock per tenant and document type for the duration of the transaction).
package numbering

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/rumbo-tms/rumbo-tms/internal/shared"
)

// DocType identifies a numbered document family.
type DocType string

const (
	DocQuotation DocType = "quotation"
	DocItinerary DocType = "itinerary"
	DocInvoice   DocType = "invoice"
	DocAdvance   DocType = "advance"
)

// LeaderFallback replaces an empty or fully-stripped group-leader name.
const LeaderFallback = "SIN_NOMBRE"

const leaderMaxRunes = 25

// Letter is the type discriminator embedded in the short code.
func (d DocType) Letter() string {
	switch d {
	case DocQuotation:
		return "C"
	case DocItinerary:
		return "T"
	case DocInvoice:
		return "F"
	case DocAdvance:
		return "A"
	default:
		return "X"
	}
}

var currentPattern = regexp.MustCompile(`^\d{4}-([A-Z])(\d{5})`)

// Historic formats still present in tenant data.
var legacyPatterns = map[DocType][]*regexp.Regexp{
	DocQuotation: {regexp.MustCompile(`^COT-\d{4}-(\d+)$`)},
	DocItinerary: {regexp.MustCompile(`^IT-\d{4}-(\d+)$`)},
	DocInvoice:   {regexp.MustCompile(`^INV-\d{4}-(\d+)$`)},
	DocAdvance:   {regexp.MustCompile(`^ANT-\d{4}-(\d+)$`)},
}

// ExtractSequence pulls the numeric sequence out of a document number in the
// current or any legacy format. Returns false for foreign formats.
func ExtractSequence(number string, docType DocType) (int64, bool) {
	number = strings.TrimSpace(number)
	if m := currentPattern.FindStringSubmatch(number); m != nil {
		if m[1] != docType.Letter() {
			return 0, false
		}
		seq, err := strconv.ParseInt(m[2], 10, 64)
		return seq, err == nil
	}
	for _, pattern := range legacyPatterns[docType] {
		if m := pattern.FindStringSubmatch(number); m != nil {
			seq, err := strconv.ParseInt(m[1], 10, 64)
			return seq, err == nil
		}
	}
	return 0, false
}

// NextSequence derives the next sequence from the tenant's existing numbers.
func NextSequence(existing []string, docType DocType) int64 {
	var max int64
	for _, number := range existing {
		if seq, ok := ExtractSequence(number, docType); ok && seq > max {
			max = seq
		}
	}
	return max + 1
}

// ShortCode formats the canonical {YYMM}-{Letter}{%05d} code.
func ShortCode(docType DocType, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s%05d", date.Format("0601"), docType.Letter(), seq)
}

// LongCode appends the client code and sanitized leader tag to a short code.
func LongCode(short, clientCode, leaderName string, groupSize int) string {
	return fmt.Sprintf("%s-%s-%s_x_%02d", short, clientCode, SanitizeLeader(leaderName), groupSize)
}

func isLeaderRune(r rune) bool {
	if r > unicode.MaxLatin1 {
		return false
	}
	return unicode.IsLetter(r)
}

// SanitizeLeader normalizes a group-leader name for embedding in a code:
// Latin letters (diacritics included) survive, whitespace collapses to a
// single underscore, everything else is stripped, capped at 25 runes.
func SanitizeLeader(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case isLeaderRune(r):
			b.WriteRune(r)
			lastUnderscore = false
		case unicode.IsSpace(r):
			if !lastUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return LeaderFallback
	}
	runes := []rune(out)
	if len(runes) > leaderMaxRunes {
		out = strings.Trim(string(runes[:leaderMaxRunes]), "_")
	}
	return out
}

// NumberRepository lists a tenant's existing document numbers of one type.
// Implementations must be called inside the transaction that inserts the new
// document, under the tenant/type advisory lock.
type NumberRepository interface {
	ExistingNumbers(ctx context.Context, tenantID string, docType DocType) ([]string, error)
}

// Next allocates the next short code for a tenant/document type as of date.
func Next(ctx context.Context, repo NumberRepository, tenantID string, docType DocType, date time.Time) (string, int64, error) {
	if tenantID == "" {
		return "", 0, shared.Validationf("tenant id required")
	}
	existing, err := repo.ExistingNumbers(ctx, tenantID, docType)
	if err != nil {
		return "", 0, fmt.Errorf("numbering: scan existing: %w", err)
	}
	seq := NextSequence(existing, docType)
	return ShortCode(docType, date, seq), seq, nil
}
