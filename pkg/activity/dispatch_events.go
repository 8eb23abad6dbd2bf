package activity

import (
	"strings"
	"time"
)

// Verbs emitted for module dispatches.
const (
	VerbModuleIntercepted = "module.intercepted"
	VerbModuleOverridden  = "module.overridden"
	VerbModuleLoaded      = "module.loaded"
	VerbModuleFailed      = "module.failed"
)

// ObjectTypeModule is the object type of every dispatch event.
const ObjectTypeModule = "module"

// DispatchEventInput describes the outcome of a single module dispatch.
type DispatchEventInput struct {
	ActorID   string
	TenantID  string
	Channel   string
	Reference string
	Identity  string
	Parent    string
	Entry     bool
	// Source is the pipeline tier that answered: global, target, override,
	// fallback or resolve.
	Source     string
	Index      int
	Duration   time.Duration
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildDispatchEvent maps a dispatch outcome to a normalized event. The verb
// is derived from the answering tier; any error wins over the tier.
func BuildDispatchEvent(input DispatchEventInput) Event {
	metadata := cloneMap(input.Metadata)
	metadata = ensureMetadata(metadata)
	metadata["reference"] = input.Reference
	if input.Source != "" {
		metadata["source"] = input.Source
	}
	if input.Source == "global" || input.Source == "target" {
		metadata["index"] = input.Index
	}
	if input.Parent != "" {
		metadata["parent"] = input.Parent
	}
	if input.Entry {
		metadata["entry"] = true
	}
	if input.Duration > 0 {
		metadata["duration_ms"] = float64(input.Duration) / float64(time.Millisecond)
	}
	if input.Err != nil {
		metadata["error"] = input.Err.Error()
	}

	objectID := strings.TrimSpace(input.Identity)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Reference)
	}
	if objectID == "" {
		objectID = ObjectTypeModule
	}

	return Event{
		Verb:       dispatchVerb(input.Source, input.Err),
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeModule,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func dispatchVerb(source string, err error) string {
	if err != nil {
		return VerbModuleFailed
	}
	switch source {
	case "global", "target":
		return VerbModuleIntercepted
	case "override":
		return VerbModuleOverridden
	default:
		return VerbModuleLoaded
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
