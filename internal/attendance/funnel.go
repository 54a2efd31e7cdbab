package attendance

import (
	"strings"

	"github.com/aura-webinar/spotlight/internal/models"
)

// midFunnel returns the label used for the mid-funnel engagement stage of ctaType.
func midFunnel(ctaType models.CtaType) models.AttendedType {
	if ctaType == models.CtaTypeBookACall {
		return models.AttendedTypeBreakoutRoom
	}
	return models.AttendedTypeAddedToCart
}

// Stages lists the stages that apply to a webinar with ctaType, in funnel order.
// ADDED_TO_CART and BREAKOUT_ROOM never appear together.
func Stages(ctaType models.CtaType) []models.AttendedType {
	out := make([]models.AttendedType, 0, len(models.AllAttendedTypes)-1)
	for _, s := range models.AllAttendedTypes {
		if s == models.AttendedTypeAddedToCart || s == models.AttendedTypeBreakoutRoom {
			if s != midFunnel(ctaType) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// DisplayStage maps a persisted stage to the bucket it is shown under for ctaType.
// Stored ADDED_TO_CART rows belong to BREAKOUT_ROOM on BOOK_A_CALL webinars.
func DisplayStage(ctaType models.CtaType, stored models.AttendedType) models.AttendedType {
	if stored == models.AttendedTypeAddedToCart || stored == models.AttendedTypeBreakoutRoom {
		return midFunnel(ctaType)
	}
	return stored
}

// storedStages is the inverse of DisplayStage: the persisted values that land in bucket.
func storedStages(ctaType models.CtaType, bucket models.AttendedType) []models.AttendedType {
	if bucket == midFunnel(ctaType) {
		return []models.AttendedType{models.AttendedTypeAddedToCart, models.AttendedTypeBreakoutRoom}
	}
	return []models.AttendedType{bucket}
}

// PipelineColumns returns the presenter board columns for ctaType: the shared stages
// followed by the CTA specific one.
func PipelineColumns(ctaType models.CtaType) []models.AttendedType {
	return []models.AttendedType{
		models.AttendedTypeRegistered,
		models.AttendedTypeAttended,
		models.AttendedTypeFollowUp,
		models.AttendedTypeConverted,
		midFunnel(ctaType),
	}
}

// FormatStageLabel turns "ADDED_TO_CART" into "Added To Cart".
func FormatStageLabel(stage models.AttendedType) string {
	words := strings.Split(string(stage), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = w[:1] + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
