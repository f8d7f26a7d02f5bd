// Package errs defines the sentinel errors returned by pdbgen packages.
//
// Failure sites wrap these sentinels with context using fmt.Errorf("%w: ...").
// Callers test for a specific failure with errors.Is and for the broad failure
// class with Classify.
package errs

import "errors"

// Malformed input: a record or subsection in an input module cannot be decoded.
var (
	ErrMalformedRecord      = errors.New("malformed record")
	ErrTruncatedRecord      = errors.New("truncated record")
	ErrUnknownRecordKind    = errors.New("unknown record kind")
	ErrForwardTypeReference = errors.New("forward type reference")
	ErrTypeIndexOutOfRange  = errors.New("type index out of range")
	ErrMissingTerminator    = errors.New("missing string terminator")
	ErrInvalidSignature     = errors.New("invalid debug section signature")
	ErrInvalidHeaderSize    = errors.New("invalid header size")
	ErrInvalidSuperBlock    = errors.New("invalid msf superblock")
	ErrInvalidPackedData    = errors.New("invalid packed artifact")
)

// Resource failures: streams or the destination cannot be created or written.
var (
	ErrStreamCreate       = errors.New("cannot create stream")
	ErrStreamSealed       = errors.New("stream is sealed")
	ErrInvalidStreamIndex = errors.New("invalid stream index")
	ErrWriteArtifact      = errors.New("cannot write artifact")
)

// Invariant violations: internal consistency checks.
var (
	ErrUnmatchedScope   = errors.New("scope opener without matching closer")
	ErrUnbalancedScope  = errors.New("scope closer without open scope")
	ErrOffsetOverflow   = errors.New("offset exceeds 32-bit range")
	ErrDuplicateBuild   = errors.New("builder already finished")
	ErrInvalidBlockSize = errors.New("invalid msf block size")
	ErrInvalidAge       = errors.New("invalid program database age")
)

// Configuration and usage errors.
var (
	ErrNilImage       = errors.New("image is nil")
	ErrInvalidVersion = errors.New("invalid tool version")
	ErrInvalidCodec   = errors.New("invalid compression codec")
)

// Class is the broad category of a failure.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassMalformedInput
	ClassResource
	ClassInvariant
)

func (c Class) String() string {
	switch c {
	case ClassMalformedInput:
		return "malformed input"
	case ClassResource:
		return "resource failure"
	case ClassInvariant:
		return "invariant violation"
	default:
		return "unknown"
	}
}

var classes = []struct {
	class Class
	errs  []error
}{
	{ClassMalformedInput, []error{
		ErrMalformedRecord, ErrTruncatedRecord, ErrUnknownRecordKind, ErrForwardTypeReference,
		ErrTypeIndexOutOfRange, ErrMissingTerminator, ErrInvalidSignature, ErrInvalidHeaderSize,
		ErrInvalidSuperBlock, ErrInvalidPackedData,
	}},
	{ClassResource, []error{ErrStreamCreate, ErrStreamSealed, ErrInvalidStreamIndex, ErrWriteArtifact}},
	{ClassInvariant, []error{ErrUnmatchedScope, ErrUnbalancedScope, ErrOffsetOverflow, ErrDuplicateBuild, ErrInvalidBlockSize, ErrInvalidAge}},
}

// Classify reports the failure class of err, or ClassUnknown when err does not
// wrap any sentinel of this package.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	for _, c := range classes {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.class
			}
		}
	}

	return ClassUnknown
}
