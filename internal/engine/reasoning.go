package engine

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/temcen/retouch/pkg/models"
)

// DisplayName turns a snake_case identifier into a title-cased label.
// A Caser is stateful, so one is built per call.
func DisplayName(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}

func factorLabel(f Factor) string {
	return strings.ReplaceAll(string(f), "_", " ")
}

// explain builds the human readable reason for one recommendation.
func explain(profile *EnhancementProfile, t models.EnhancementType, intensity float64, applied []appliedAdjustment, blended bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %.0f%% for the %s profile", DisplayName(string(t)), intensity*100, profile.Name)

	var notes []string
	for _, a := range applied {
		adj := a.adjustment
		if adj.Gated() {
			verb := "raised"
			if adj.Multiplier < 1 {
				verb = "lowered"
			}
			notes = append(notes, fmt.Sprintf("%s because %s is %s %.2f", verb, factorLabel(adj.Factor), adj.Operator.symbol(), *adj.Threshold))
			continue
		}
		notes = append(notes, fmt.Sprintf("scaled x%.2f by %s %.2f", a.effective, factorLabel(adj.Factor), a.value))
	}
	if blended {
		notes = append(notes, "blended with your learned preference")
	}

	if len(notes) > 0 {
		b.WriteString("; ")
		b.WriteString(strings.Join(notes, "; "))
	}
	return b.String()
}
