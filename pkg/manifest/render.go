package manifest

import (
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	"sigs.k8s.io/yaml"
)

// RenderYAML serializes the job as YAML for the run artifact and for
// operator inspection. The output never contains credential material:
// the job only carries secret references.
func RenderYAML(job *batchv1.Job) ([]byte, error) {
	data, err := yaml.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("render job manifest: %w", err)
	}
	return data, nil
}
