package scheduler

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
// A range ending exactly when the other begins does not overlap it.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Valid reports whether the interval has a positive length.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// ResourceKind names the kind of bookable resource a commitment holds.
type ResourceKind string

const (
	// ResourceInstructor is a moniteur's time.
	ResourceInstructor ResourceKind = "instructor"
	// ResourceVehicle is a school vehicle's time.
	ResourceVehicle ResourceKind = "vehicle"
)

// ResourceRef identifies one bookable resource.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

// InstructorResource returns the resource reference for an instructor.
func InstructorResource(id string) ResourceRef {
	return ResourceRef{Kind: ResourceInstructor, ID: id}
}

// VehicleResource returns the resource reference for a vehicle.
func VehicleResource(id string) ResourceRef {
	return ResourceRef{Kind: ResourceVehicle, ID: id}
}

// String renders the reference as "kind:id".
func (r ResourceRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Commitment is an availability register entry: the resource is occupied by the session for the interval.
type Commitment struct {
	SessionID string
	Resource  ResourceRef
	Interval  Interval
}

// CommitmentsFor derives the commitments a session holds while it is active.
// Cancelled sessions hold nothing.
func CommitmentsFor(session Session) []Commitment {
	if !session.Status.Active() {
		return nil
	}
	interval := session.Interval()
	out := []Commitment{{
		SessionID: session.ID,
		Resource:  InstructorResource(session.InstructorID),
		Interval:  interval,
	}}
	if vehicleID := session.VehicleID(); vehicleID != "" {
		out = append(out, Commitment{
			SessionID: session.ID,
			Resource:  VehicleResource(vehicleID),
			Interval:  interval,
		})
	}
	return out
}

// Conflict details an overlapping commitment that blocks a request.
type Conflict struct {
	WithSessionID string
	Resource      ResourceRef
	Interval      Interval
}

// DetectConflicts returns every existing commitment overlapping a requested one on the same resource.
// Commitments that belong to excludeSessionID are ignored so a session can be moved within its own slot.
// Results are ordered by resource (instructor first) and then by start time.
func DetectConflicts(existing []Commitment, requested []Commitment, excludeSessionID string) []Conflict {
	var conflicts []Conflict
	seen := make(map[string]struct{})
	for _, want := range requested {
		for _, have := range existing {
			if have.Resource != want.Resource {
				continue
			}
			if excludeSessionID != "" && have.SessionID == excludeSessionID {
				continue
			}
			if !have.Interval.Overlaps(want.Interval) {
				continue
			}
			key := have.Resource.String() + "|" + have.SessionID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			conflicts = append(conflicts, Conflict{
				WithSessionID: have.SessionID,
				Resource:      have.Resource,
				Interval:      have.Interval,
			})
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Resource.Kind != conflicts[j].Resource.Kind {
			return conflicts[i].Resource.Kind == ResourceInstructor
		}
		return conflicts[i].Interval.Start.Before(conflicts[j].Interval.Start)
	})
	return conflicts
}
