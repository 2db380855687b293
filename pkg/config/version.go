package config

// Manifest identifiers.
const (
	// APIVersion is the Kubernetes-style API version for live session manifests.
	APIVersion = "stylist.altairalabs.ai/v1alpha1"

	// KindLiveSession is the manifest kind.
	KindLiveSession = "LiveSession"

	// SchemaVersion is the version string of the embedded schema.
	SchemaVersion = "v1alpha1"
)
