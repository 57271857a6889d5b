package store

import "github.com/fiend365gdsv/SQMS/internal/models"

// served tokens are terminal; serve and absent tolerate either live state.
var transitionMap = map[string][]string{
	"call_next": {models.StatusWaiting},
	"serve":     {models.StatusWaiting, models.StatusCalled},
	"absent":    {models.StatusWaiting, models.StatusCalled},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
