// Package tracker models the delivery state machine of an order and the
// progress metadata shown on the confirmation and order history views.
package tracker

import (
	"errors"
	"fmt"

	"github.com/safar/go-checkout/internal/models"
)

var ErrUnknownStatus = errors.New("unknown delivery status")

type stage struct {
	status models.DeliveryStatus
	label  string
}

var stages = []stage{
	{models.DeliveryStatusOrdered, "Ordered"},
	{models.DeliveryStatusShipped, "Shipped"},
	{models.DeliveryStatusOutForDelivery, "Out for Delivery"},
	{models.DeliveryStatusDelivered, "Delivered"},
}

// Initial is the status every committed order starts in.
const Initial = models.DeliveryStatusOrdered

// Terminal is the status after which no transition exists.
const Terminal = models.DeliveryStatusDelivered

type Step struct {
	Status    models.DeliveryStatus `json:"status"`
	Label     string                `json:"label"`
	Completed bool                  `json:"completed"`
}

type Progress struct {
	Status    models.DeliveryStatus `json:"status"`
	Index     int                   `json:"index"`
	LastIndex int                   `json:"last_index"`
	Fraction  float64               `json:"fraction"`
	Steps     []Step                `json:"steps"`
	Done      bool                  `json:"done"`
}

// Statuses returns the stages in order.
func Statuses() []models.DeliveryStatus {
	out := make([]models.DeliveryStatus, len(stages))
	for i, s := range stages {
		out[i] = s.status
	}
	return out
}

// Index returns the position of status in the sequence.
func Index(status models.DeliveryStatus) (int, error) {
	for i, s := range stages {
		if s.status == status {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
}

// ProgressOf derives the display state for status. Every stage up to and
// including the current one is marked completed.
func ProgressOf(status models.DeliveryStatus) (Progress, error) {
	idx, err := Index(status)
	if err != nil {
		return Progress{}, err
	}

	last := len(stages) - 1
	steps := make([]Step, len(stages))
	for i, s := range stages {
		steps[i] = Step{Status: s.status, Label: s.label, Completed: i <= idx}
	}

	return Progress{
		Status:    status,
		Index:     idx,
		LastIndex: last,
		Fraction:  float64(idx) / float64(last),
		Steps:     steps,
		Done:      status == Terminal,
	}, nil
}

// Next returns the stage after from. ok is false for the terminal stage.
func Next(from models.DeliveryStatus) (next models.DeliveryStatus, ok bool, err error) {
	idx, err := Index(from)
	if err != nil {
		return "", false, err
	}
	if idx == len(stages)-1 {
		return "", false, nil
	}
	return stages[idx+1].status, true, nil
}

// CanAdvance reports whether to is exactly one stage after from.
func CanAdvance(from, to models.DeliveryStatus) bool {
	next, ok, err := Next(from)
	return err == nil && ok && next == to
}
