package db

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// DuplicateKeyError is an error type for duplicate key errors
type DuplicateKeyError struct {
	Key     string
	Message string
}

func (e *DuplicateKeyError) Error() string {
	return e.Message
}

func IsDuplicateKeyError(err error) bool {
	var target *DuplicateKeyError
	return errors.As(err, &target)
}

// Not found Error
type NotFoundError struct {
	Key     string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// translateInsertError maps mongo duplicate key write errors to DuplicateKeyError
func translateInsertError(err error, key, message string) error {
	if err == nil {
		return nil
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, e := range writeErr.WriteErrors {
			if mongo.IsDuplicateKeyError(e) {
				return &DuplicateKeyError{
					Key:     key,
					Message: message,
				}
			}
		}
	}
	return err
}

// translateFindError maps mongo.ErrNoDocuments to NotFoundError
func translateFindError(err error, key, message string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &NotFoundError{
			Key:     key,
			Message: message,
		}
	}
	return err
}
