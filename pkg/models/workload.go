package models

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/validation"
)

// WorkloadIdentity identifies a deployment within a namespace
type WorkloadIdentity struct {
	Namespace  string `json:"namespace"`
	Deployment string `json:"deployment"`
}

// NewWorkloadIdentity is a convenience constructor
func NewWorkloadIdentity(namespace, deployment string) WorkloadIdentity {
	return WorkloadIdentity{Namespace: namespace, Deployment: deployment}
}

// Key renders the identity as "namespace:deployment", the form stored in the enabled index
func (w WorkloadIdentity) Key() string {
	return w.Namespace + ":" + w.Deployment
}

func (w WorkloadIdentity) String() string {
	return w.Namespace + "/" + w.Deployment
}

// NamespacedName converts the identity for use with Kubernetes clients
func (w WorkloadIdentity) NamespacedName() types.NamespacedName {
	return types.NamespacedName{Namespace: w.Namespace, Name: w.Deployment}
}

// Validate checks both halves against Kubernetes naming rules
func (w WorkloadIdentity) Validate() error {
	if errs := validation.IsDNS1123Label(w.Namespace); len(errs) > 0 {
		return &ValidationError{Field: "namespace", Value: w.Namespace, Reason: strings.Join(errs, "; ")}
	}
	if errs := validation.IsDNS1123Subdomain(w.Deployment); len(errs) > 0 {
		return &ValidationError{Field: "deployment name", Value: w.Deployment, Reason: strings.Join(errs, "; ")}
	}
	return nil
}

// ParseWorkloadKey is the inverse of Key
func ParseWorkloadKey(key string) (WorkloadIdentity, error) {
	namespace, deployment, ok := strings.Cut(key, ":")
	if !ok || namespace == "" || deployment == "" {
		return WorkloadIdentity{}, fmt.Errorf("malformed workload key: %q", key)
	}
	return WorkloadIdentity{Namespace: namespace, Deployment: deployment}, nil
}
