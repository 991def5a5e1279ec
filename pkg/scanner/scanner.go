package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	"k8s.io/utils/ptr"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// NewClientset builds a clientset from kubeconfig. An empty path falls back
// to ~/.kube/config and then to the in-cluster service account.
func NewClientset(kubeconfig string) (kubernetes.Interface, error) {
	if kubeconfig == "" {
		if home := homedir.HomeDir(); home != "" {
			path := filepath.Join(home, ".kube", "config")
			if _, err := os.Stat(path); err == nil {
				kubeconfig = path
			}
		}
	}

	var (
		config *rest.Config
		err    error
	)
	if kubeconfig != "" {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		config, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return clientset, nil
}

// Scanner reads deployments from the cluster
type Scanner struct {
	clientset kubernetes.Interface
}

// Deployment is a discovered deployment
type Deployment struct {
	Identity      models.WorkloadIdentity
	Replicas      int32
	ReadyReplicas int32
}

func New(clientset kubernetes.Interface) *Scanner {
	return &Scanner{clientset: clientset}
}

// ServerVersion returns the cluster's git version
func (s *Scanner) ServerVersion() (string, error) {
	version, err := s.clientset.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("failed to connect to cluster: %w", err)
	}
	return version.GitVersion, nil
}

// DeploymentExists returns an error wrapping the API NotFound error when the
// workload has no deployment
func (s *Scanner) DeploymentExists(ctx context.Context, id models.WorkloadIdentity) error {
	_, err := s.clientset.AppsV1().Deployments(id.Namespace).Get(ctx, id.Deployment, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("deployment %s does not exist: %w", id, err)
	}
	if err != nil {
		return fmt.Errorf("failed to get deployment %s: %w", id, err)
	}
	return nil
}

// ListDeployments returns the deployments of a namespace sorted by name
func (s *Scanner) ListDeployments(ctx context.Context, namespace string) ([]Deployment, error) {
	list, err := s.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments in %s: %w", namespace, err)
	}

	deployments := make([]Deployment, 0, len(list.Items))
	for _, d := range list.Items {
		deployments = append(deployments, Deployment{
			Identity:      models.NewWorkloadIdentity(d.Namespace, d.Name),
			Replicas:      ptr.Deref(d.Spec.Replicas, 1),
			ReadyReplicas: d.Status.ReadyReplicas,
		})
	}
	sort.Slice(deployments, func(i, j int) bool {
		return deployments[i].Identity.Deployment < deployments[j].Identity.Deployment
	})
	return deployments, nil
}
