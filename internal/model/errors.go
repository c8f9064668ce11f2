package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDataInconsistent is returned when sources disagree about the same entity
	ErrDataInconsistent = errors.New("data inconsistent")

	// ErrUnknownDevice is returned when lsblk or /dev/disk names an entity sysfs does not have
	ErrUnknownDevice = errors.New("unknown device")

	// ErrNameParse is returned for device names outside the kernel naming grammar
	ErrNameParse = errors.New("unparsable device name")
)

// WarningKind classifies a recoverable reconciliation or rendering problem
type WarningKind string

const (
	WarnIncompleteLsblk   WarningKind = "INCOMPLETE_LSBLK"
	WarnZpoolUnavailable  WarningKind = "ZPOOL_UNAVAILABLE"
	WarnLocationAmbiguous WarningKind = "LOCATION_AMBIGUOUS"
	WarnFieldAmbiguous    WarningKind = "FIELD_AMBIGUOUS"
)

// Warning is a degraded-data condition that does not stop the run
type Warning struct {
	Kind    WarningKind
	Subject string
	Message string

	// Hint is optional guidance shown to the user, e.g. a sudoers line
	Hint string
}

func (w Warning) String() string {
	if w.Subject == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Subject, w.Message)
}
