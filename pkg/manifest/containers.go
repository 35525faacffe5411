package manifest

import (
	"strconv"

	corev1 "k8s.io/api/core/v1"
)

// credentialEnv builds the AWS credential bindings from the secret.
//
// The session token binding is only emitted when requested, and is
// always marked optional: temporary-credential runs have the key,
// long-term-credential runs do not.
func credentialEnv(params Params, withSessionToken bool) []corev1.EnvVar {
	env := []corev1.EnvVar{
		secretEnv("AWS_ACCESS_KEY_ID", params.SecretName, SecretKeyAccessKey, false),
		secretEnv("AWS_SECRET_ACCESS_KEY", params.SecretName, SecretKeySecretKey, false),
	}
	if withSessionToken {
		env = append(env, secretEnv("AWS_SESSION_TOKEN", params.SecretName, SecretKeySessionToken, true))
	}
	return env
}

func secretEnv(name, secretName, key string, optional bool) corev1.EnvVar {
	return corev1.EnvVar{
		Name: name,
		ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
				Key:                  key,
				Optional:             &optional,
			},
		},
	}
}

// initContainer is the connectivity pre-check. It performs a head-bucket
// call with the run's credentials and exits non-zero on any failure, so
// bad credentials or an unreachable endpoint abort the run before the
// benchmark workload starts.
func initContainer(params Params) corev1.Container {
	args := []string{
		"s3api", "head-bucket",
		"--bucket", params.Bucket,
		"--endpoint-url", params.Endpoint,
		"--region", params.Region,
	}
	return corev1.Container{
		Name:  InitContainerName,
		Image: params.InitImage,
		Args:  args,
		// The pre-check always receives the session token binding when
		// one exists, since head-bucket must see exactly the credentials
		// the workload will use.
		Env: append(credentialEnv(params, true), corev1.EnvVar{
			Name:  "AWS_EC2_METADATA_DISABLED",
			Value: "true",
		}),
	}
}

// mainContainer is the qps-bench workload.
func mainContainer(params Params) corev1.Container {
	args := []string{
		"--endpoint", params.Endpoint,
		"--bucket", params.Bucket,
		"--region", params.Region,
		"--mode", params.Mode,
		"--concurrency", strconv.Itoa(params.Concurrency),
		"--duration-seconds", strconv.Itoa(params.DurationSeconds),
		"--objects", strconv.Itoa(params.Objects),
		"--object-size-bytes", strconv.Itoa(params.ObjectSizeBytes),
		"--access-key", "$(AWS_ACCESS_KEY_ID)",
		"--secret-key", "$(AWS_SECRET_ACCESS_KEY)",
	}
	if params.ForcePathStyle {
		args = append(args, "--force-path-style", "true")
	}
	if params.InjectSessionToken {
		args = append(args, "--session-token", "$(AWS_SESSION_TOKEN)")
	}
	return corev1.Container{
		Name:  MainContainerName,
		Image: params.Image,
		Args:  args,
		Env:   credentialEnv(params, params.InjectSessionToken),
	}
}
