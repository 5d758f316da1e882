package docker

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmr-tortoise/espbuild/internal/model"
)

// Label key constants define the Docker label keys stamped on every
// build container. The labels are the only bookkeeping espbuild keeps
// about containers — discovery and cleanup are done purely via
// label-filtered Docker API queries, with no state file.
//
// All keys share the "espbuild." prefix to namespace them and avoid
// collisions with labels set by other tools.
const (
	// LabelPrefix is the common prefix for all espbuild labels.
	LabelPrefix = "espbuild."

	// LabelManagedBy identifies containers created by espbuild.
	// This is the primary label used for filtering and discovery.
	// Key: "espbuild.managed-by", Value: always "espbuild".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelProject stores the project name the build belongs to.
	// Key: "espbuild.project", Value: project name from config.
	LabelProject = LabelPrefix + "project"

	// LabelTarget stores the cross-compilation target triple.
	// Key: "espbuild.target", Value: e.g. "xtensa-esp32s3-espidf".
	LabelTarget = LabelPrefix + "target"

	// LabelCreatedAt stores when the build container was created.
	// Key: "espbuild.created-at", Value: RFC3339 formatted timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "espbuild"

// BuildMeta is the metadata espbuild records about a build container,
// encoded in and reconstructed from its labels.
type BuildMeta struct {
	// Project is the project name from config.
	Project string `json:"project"`

	// Target is the cross-compilation target of the build.
	Target model.Target `json:"target"`

	// CreatedAt is when the container was created.
	CreatedAt time.Time `json:"createdAt"`
}

// BuildLabels constructs the label map stamped on a build container.
func BuildLabels(meta BuildMeta) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelProject:   meta.Project,
		LabelTarget:    meta.Target.String(),
		// UTC ensures consistent timestamps regardless of the host
		// machine's timezone.
		LabelCreatedAt: meta.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs BuildMeta from a container's labels.
// This is the inverse of BuildLabels, used when listing leftover build
// containers.
func ParseLabels(labels map[string]string) (*BuildMeta, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelProject,
		LabelTarget,
		LabelCreatedAt,
	}

	// Check all required labels at once so the error message can list
	// every missing one.
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	target, err := model.ParseTarget(labels[LabelTarget])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelTarget, err)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &BuildMeta{
		Project:   labels[LabelProject],
		Target:    target,
		CreatedAt: createdAt,
	}, nil
}
