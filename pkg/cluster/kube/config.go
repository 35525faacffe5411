// Package kube implements the cluster gateway on top of client-go.
package kube

// Config configures a kube gateway.
//
// Connection resolution order:
//  1. Explicit Kubeconfig path (if provided)
//  2. KUBECONFIG environment variable (client-go loading rules)
//  3. ~/.kube/config
//  4. In-cluster service account, when running inside a pod
type Config struct {
	// Kubeconfig is an explicit path to a kubeconfig file.
	// Leave empty to use the default loading rules.
	Kubeconfig string

	// Context is the kubeconfig context name. Leave empty for the
	// current context.
	Context string
}
