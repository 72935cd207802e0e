package models

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every request validation failure.
var ErrValidation = errors.New("validation failed")

// BacklogItem is a single ticket in a backlog.
type BacklogItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Desc  string `json:"desc"`
}

// FeatureList is the body of a feature prioritization request.
type FeatureList struct {
	Features []string `json:"features"`
}

// Validate ensures at least one feature is given.
func (f *FeatureList) Validate() error {
	if len(f.Features) == 0 {
		return fmt.Errorf("%w: features cannot be empty", ErrValidation)
	}
	return nil
}

// BacklogList is the body of a backlog grooming or task suggestion request.
type BacklogList struct {
	Backlog []BacklogItem `json:"backlog"`
}

// Validate ensures the backlog is non-empty and every item has an id and a title.
func (b *BacklogList) Validate() error {
	if len(b.Backlog) == 0 {
		return fmt.Errorf("%w: backlog cannot be empty", ErrValidation)
	}
	for i, item := range b.Backlog {
		if item.ID == "" || item.Title == "" {
			return fmt.Errorf("%w: backlog item %d needs id and title", ErrValidation, i)
		}
	}
	return nil
}

// Titles returns the item titles in backlog order.
func (b *BacklogList) Titles() []string {
	titles := make([]string, len(b.Backlog))
	for i, item := range b.Backlog {
		titles[i] = item.Title
	}
	return titles
}

// BacklogFromColumns zips aligned id, title, and description lists into a backlog.
// The three lists must have the same length.
func BacklogFromColumns(ids, titles, descs []string) (*BacklogList, error) {
	if len(ids) != len(titles) || len(titles) != len(descs) {
		return nil, fmt.Errorf("%w: ids, titles, and descs must have the same length", ErrValidation)
	}
	list := &BacklogList{Backlog: make([]BacklogItem, len(ids))}
	for i := range ids {
		list.Backlog[i] = BacklogItem{ID: ids[i], Title: titles[i], Desc: descs[i]}
	}
	return list, nil
}

// ActivityLog is the body of a team insights request.
type ActivityLog struct {
	ActivityLog string `json:"activity_log"`
}

// Validate ensures the activity log is not empty.
func (a *ActivityLog) Validate() error {
	if a.ActivityLog == "" {
		return fmt.Errorf("%w: activity_log cannot be empty", ErrValidation)
	}
	return nil
}
