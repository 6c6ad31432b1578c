package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ekaya-inc/visibility-engine/pkg/apperrors"
	"github.com/ekaya-inc/visibility-engine/pkg/jsonutil"
	"github.com/ekaya-inc/visibility-engine/pkg/llm"
	"github.com/ekaya-inc/visibility-engine/pkg/logging"
	"github.com/ekaya-inc/visibility-engine/pkg/models"
)

// Defaults for optional hallucination flag fields.
const (
	defaultFlagSeverity = models.SeverityLow
	defaultFlagType     = models.FlagFactualError
)

// ValidationError reports analysis output that could not be accepted.
// It always names the provider that produced the payload.
type ValidationError struct {
	ProviderID string
	Field      string // empty when the payload as a whole is unusable
	Reason     string
	Snippet    string // bounded, credential-free excerpt of the raw output
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid analysis from %s: %s (raw: %q)", e.ProviderID, e.Reason, e.Snippet)
	}
	return fmt.Sprintf("invalid analysis from %s: field %s: %s (raw: %q)", e.ProviderID, e.Field, e.Reason, e.Snippet)
}

// Unwrap lets callers match apperrors.ErrInvalidAnalysis.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidAnalysis
}

// ValidateAnalysis parses raw analyze-chain output and normalizes it into an
// AnalysisOutput. Absent or null optional fields take their defaults; a field
// that is present with the wrong type is rejected. Scores are clamped into
// range and every slice in the result is non-nil.
func ValidateAnalysis(raw, providerID string) (*models.AnalysisOutput, error) {
	v := &analysisValidator{providerID: providerID, snippet: logging.Snippet(raw)}

	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return nil, v.fail("", "response is not a JSON object")
	}
	if err := json.Unmarshal([]byte(obj), &v.fields); err != nil {
		return nil, v.fail("", "malformed JSON: "+err.Error())
	}

	out := &models.AnalysisOutput{
		MentionType:        models.MentionNone,
		Sentiment:          models.SentimentNeutral,
		CitedURLs:          []string{},
		CompetitorMentions: []models.CompetitorMention{},
		HallucinationFlags: []models.HallucinationFlag{},
	}

	steps := []func(*models.AnalysisOutput) error{
		v.brandMentioned,
		v.visibilityScore,
		v.mentionPosition,
		v.mentionCount,
		v.mentionType,
		v.sentiment,
		v.sentimentScore,
		v.citedURLs,
		v.competitorMentions,
		v.hasHallucination,
		v.hallucinationFlags,
	}
	for _, step := range steps {
		if err := step(out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

type analysisValidator struct {
	providerID string
	snippet    string
	fields     map[string]json.RawMessage
}

func (v *analysisValidator) fail(field, reason string) *ValidationError {
	return &ValidationError{ProviderID: v.providerID, Field: field, Reason: reason, Snippet: v.snippet}
}

func (v *analysisValidator) wrongType(field string, want jsonutil.Kind, raw json.RawMessage) *ValidationError {
	return v.fail(field, fmt.Sprintf("expected %s, got %s", want, jsonutil.Describe(raw)))
}

// field returns the raw value and whether it was provided (present and not null).
func (v *analysisValidator) field(name string) (json.RawMessage, bool) {
	raw, ok := v.fields[name]
	if !ok || jsonutil.IsAbsent(raw) {
		return nil, false
	}
	return raw, true
}

func (v *analysisValidator) brandMentioned(out *models.AnalysisOutput) error {
	raw, ok := v.field("brandMentioned")
	if !ok {
		return v.fail("brandMentioned", "required field is missing")
	}
	b, err := decodeBool(raw)
	if err != nil {
		return v.wrongType("brandMentioned", jsonutil.KindBool, raw)
	}
	out.BrandMentioned = b
	return nil
}

func (v *analysisValidator) visibilityScore(out *models.AnalysisOutput) error {
	raw, ok := v.field("visibilityScore")
	if !ok {
		return v.fail("visibilityScore", "required field is missing")
	}
	n, err := decodeNumber(raw)
	if err != nil {
		return v.wrongType("visibilityScore", jsonutil.KindNumber, raw)
	}
	out.VisibilityScore = clamp(n, models.MinVisibilityScore, models.MaxVisibilityScore)
	return nil
}

func (v *analysisValidator) mentionPosition(out *models.AnalysisOutput) error {
	raw, ok := v.field("mentionPosition")
	if !ok {
		return nil
	}
	n, err := decodeNumber(raw)
	if err != nil {
		return v.wrongType("mentionPosition", jsonutil.KindNumber, raw)
	}
	if pos := nonNegative(n); pos >= 1 {
		out.MentionPosition = &pos
	}
	return nil
}

func (v *analysisValidator) mentionCount(out *models.AnalysisOutput) error {
	raw, ok := v.field("mentionCount")
	if !ok {
		return nil
	}
	n, err := decodeNumber(raw)
	if err != nil {
		return v.wrongType("mentionCount", jsonutil.KindNumber, raw)
	}
	out.MentionCount = nonNegative(n)
	return nil
}

func (v *analysisValidator) mentionType(out *models.AnalysisOutput) error {
	s, err := v.enum("mentionType", mentionTypes)
	if err != nil || s == "" {
		return err
	}
	out.MentionType = models.MentionType(s)
	return nil
}

func (v *analysisValidator) sentiment(out *models.AnalysisOutput) error {
	s, err := v.enum("sentiment", sentiments)
	if err != nil || s == "" {
		return err
	}
	out.Sentiment = models.Sentiment(s)
	return nil
}

func (v *analysisValidator) sentimentScore(out *models.AnalysisOutput) error {
	raw, ok := v.field("sentimentScore")
	if !ok {
		return nil
	}
	n, err := decodeNumber(raw)
	if err != nil {
		return v.wrongType("sentimentScore", jsonutil.KindNumber, raw)
	}
	out.SentimentScore = clamp(n, models.MinSentimentScore, models.MaxSentimentScore)
	return nil
}

func (v *analysisValidator) citedURLs(out *models.AnalysisOutput) error {
	elems, err := v.array("citedUrls")
	if err != nil {
		return err
	}
	for i, raw := range elems {
		s, err := decodeString(raw)
		if err != nil {
			return v.wrongType(fmt.Sprintf("citedUrls[%d]", i), jsonutil.KindString, raw)
		}
		out.CitedURLs = append(out.CitedURLs, s)
	}
	return nil
}

// competitorMentions keeps one entry per competitor name (case-insensitive).
// Duplicates are merged: counts add up and the best ranked position wins.
func (v *analysisValidator) competitorMentions(out *models.AnalysisOutput) error {
	elems, err := v.array("competitorMentions")
	if err != nil {
		return err
	}

	index := make(map[string]int, len(elems))
	for i, raw := range elems {
		name := fmt.Sprintf("competitorMentions[%d]", i)
		obj, err := v.object(name, raw)
		if err != nil {
			return err
		}

		nameRaw, ok := obj["name"]
		if !ok || jsonutil.IsAbsent(nameRaw) {
			return v.fail(name+".name", "required field is missing")
		}
		competitor, err := decodeString(nameRaw)
		if err != nil {
			return v.wrongType(name+".name", jsonutil.KindString, nameRaw)
		}
		competitor = strings.TrimSpace(competitor)
		if competitor == "" {
			return v.fail(name+".name", "must not be empty")
		}

		position, err := v.optionalInt(name+".position", obj["position"])
		if err != nil {
			return err
		}
		count, err := v.optionalInt(name+".count", obj["count"])
		if err != nil {
			return err
		}

		key := strings.ToLower(competitor)
		if j, seen := index[key]; seen {
			existing := &out.CompetitorMentions[j]
			existing.Count = min(existing.Count+count, maxCount)
			if position > 0 && (existing.Position == 0 || position < existing.Position) {
				existing.Position = position
			}
			continue
		}
		index[key] = len(out.CompetitorMentions)
		out.CompetitorMentions = append(out.CompetitorMentions, models.CompetitorMention{
			Name:     competitor,
			Position: position,
			Count:    count,
		})
	}
	return nil
}

func (v *analysisValidator) hasHallucination(out *models.AnalysisOutput) error {
	raw, ok := v.field("hasHallucination")
	if !ok {
		return nil
	}
	b, err := decodeBool(raw)
	if err != nil {
		return v.wrongType("hasHallucination", jsonutil.KindBool, raw)
	}
	out.HasHallucination = b
	return nil
}

func (v *analysisValidator) hallucinationFlags(out *models.AnalysisOutput) error {
	elems, err := v.array("hallucinationFlags")
	if err != nil {
		return err
	}

	for i, raw := range elems {
		name := fmt.Sprintf("hallucinationFlags[%d]", i)
		obj, err := v.object(name, raw)
		if err != nil {
			return err
		}

		flag := models.HallucinationFlag{Severity: defaultFlagSeverity, Type: defaultFlagType}

		if textRaw, ok := obj["text"]; ok && !jsonutil.IsAbsent(textRaw) {
			text, err := decodeString(textRaw)
			if err != nil {
				return v.wrongType(name+".text", jsonutil.KindString, textRaw)
			}
			flag.Text = text
		}

		severity, err := v.enumValue(name+".severity", obj["severity"], severities)
		if err != nil {
			return err
		}
		if severity != "" {
			flag.Severity = models.FlagSeverity(severity)
		}

		flagType, err := v.enumValue(name+".type", obj["type"], flagTypes)
		if err != nil {
			return err
		}
		if flagType != "" {
			flag.Type = models.FlagType(flagType)
		}

		out.HallucinationFlags = append(out.HallucinationFlags, flag)
	}
	return nil
}

var (
	mentionTypes = enumSet(models.MentionDirect, models.MentionIndirect, models.MentionNone)
	sentiments   = enumSet(models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral)
	severities   = enumSet(models.SeverityLow, models.SeverityMedium, models.SeverityHigh)
	flagTypes    = enumSet(models.FlagFactualError, models.FlagAttributionError, models.FlagFabrication, models.FlagDateError)
)

func enumSet[T ~string](values ...T) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[string(v)] = true
	}
	return set
}

// enum validates a top-level enum field. It returns "" when the field is absent.
func (v *analysisValidator) enum(field string, allowed map[string]bool) (string, error) {
	raw, _ := v.field(field)
	return v.enumValue(field, raw, allowed)
}

func (v *analysisValidator) enumValue(field string, raw json.RawMessage, allowed map[string]bool) (string, error) {
	if jsonutil.IsAbsent(raw) {
		return "", nil
	}
	s, err := decodeString(raw)
	if err != nil {
		return "", v.wrongType(field, jsonutil.KindString, raw)
	}
	normalized := strings.ToLower(strings.TrimSpace(s))
	if !allowed[normalized] {
		return "", v.fail(field, fmt.Sprintf("unknown value %q", s))
	}
	return normalized, nil
}

// array returns the elements of an optional array field; absent means empty.
func (v *analysisValidator) array(field string) ([]json.RawMessage, error) {
	raw, ok := v.field(field)
	if !ok {
		return nil, nil
	}
	if jsonutil.KindOf(raw) != jsonutil.KindArray {
		return nil, v.wrongType(field, jsonutil.KindArray, raw)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, v.wrongType(field, jsonutil.KindArray, raw)
	}
	return elems, nil
}

func (v *analysisValidator) object(field string, raw json.RawMessage) (map[string]json.RawMessage, error) {
	if jsonutil.KindOf(raw) != jsonutil.KindObject {
		return nil, v.wrongType(field, jsonutil.KindObject, raw)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, v.wrongType(field, jsonutil.KindObject, raw)
	}
	return obj, nil
}

func (v *analysisValidator) optionalInt(field string, raw json.RawMessage) (int, error) {
	if jsonutil.IsAbsent(raw) {
		return 0, nil
	}
	n, err := decodeNumber(raw)
	if err != nil {
		return 0, v.wrongType(field, jsonutil.KindNumber, raw)
	}
	return nonNegative(n), nil
}

var errKind = errors.New("unexpected JSON type")

func decodeBool(raw json.RawMessage) (bool, error) {
	if jsonutil.KindOf(raw) != jsonutil.KindBool {
		return false, errKind
	}
	var b bool
	err := json.Unmarshal(raw, &b)
	return b, err
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	if jsonutil.KindOf(raw) != jsonutil.KindNumber {
		return 0, errKind
	}
	var n float64
	err := json.Unmarshal(raw, &n)
	return n, err
}

func decodeString(raw json.RawMessage) (string, error) {
	if jsonutil.KindOf(raw) != jsonutil.KindString {
		return "", errKind
	}
	var s string
	err := json.Unmarshal(raw, &s)
	return s, err
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// maxCount bounds every integer the model reports. Float to int conversion
// of values outside the int range is implementation-defined.
const maxCount = math.MaxInt32

func nonNegative(n float64) int {
	switch {
	case n < 0 || math.IsNaN(n):
		return 0
	case n >= maxCount:
		return maxCount
	}
	return int(math.Round(n))
}
