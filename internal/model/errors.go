package model

import "errors"

var (
	// ErrDataUnavailable means the provider returned no rows or the request failed.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrFitFailure means the model could not be fitted or extrapolated.
	ErrFitFailure = errors.New("fit failure")
	// ErrPrecondition means upstream data violates a contract, e.g. a zero last price.
	ErrPrecondition = errors.New("precondition violation")
)

// Stage names the pipeline step an outcome stopped at.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageFit   Stage = "fit"
	StageShape Stage = "shape"
	StageDone  Stage = "done"
)
