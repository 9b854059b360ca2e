package services

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFilename  = errors.New("filename is required in the request body")
	ErrMissingNamespace = errors.New("company_id and project_id are required in the request body")
)

// Lifecycle steps, reported on failures.
const (
	StepPutBlob      = "put_blob"
	StepDeleteBlob   = "delete_blob"
	StepCreateRecord = "create_record"
	StepFindRecord   = "find_record"
	StepUpdateRecord = "update_record"
)

// StepError is a store failure during one step of a file operation.
type StepError struct {
	Op   string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// BlobStep reports whether the failing step touched the blob store.
func (e *StepError) BlobStep() bool {
	return e.Step == StepPutBlob || e.Step == StepDeleteBlob
}
