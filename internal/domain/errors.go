package domain

import "errors"

var (
	// ErrProductNotFound is returned when a product ID is not in the catalog
	ErrProductNotFound = errors.New("product not found")

	// ErrSupplierNotFound is returned when a supplier ID is not in the roster
	ErrSupplierNotFound = errors.New("supplier not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidPrice is returned for negative or non-finite prices
	ErrInvalidPrice = errors.New("price must be a finite non-negative number")

	// ErrQuotaExceeded is returned when the subscription tier's quota is used up
	ErrQuotaExceeded = errors.New("subscription quota exceeded")

	// ErrFeatureUnavailable is returned when the tier lacks a feature
	ErrFeatureUnavailable = errors.New("feature not available on current subscription tier")

	// ErrRefreshInProgress is returned when a refresh is requested while one is running
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrNoRefreshInProgress is returned when cancelling with nothing running
	ErrNoRefreshInProgress = errors.New("no refresh in progress")

	// ErrRefreshSuperseded is returned when a refresh result is stale on completion
	ErrRefreshSuperseded = errors.New("refresh superseded by a newer snapshot")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrSnapshotNotFound is returned when the store holds no snapshot yet
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrVersionConflict is returned when a compare-and-swap sees a newer snapshot
	ErrVersionConflict = errors.New("snapshot version conflict")

	// ErrInvalidExport is returned when an export document cannot be imported
	ErrInvalidExport = errors.New("invalid export document")

	// ErrPriceFeedFailure is returned when a supplier page request fails
	ErrPriceFeedFailure = errors.New("price feed request failed")
)
