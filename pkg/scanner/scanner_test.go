package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

func newDeployment(namespace, name string, replicas *int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec:       appsv1.DeploymentSpec{Replicas: replicas},
		Status:     appsv1.DeploymentStatus{ReadyReplicas: 1},
	}
}

func TestDeploymentExists(t *testing.T) {
	s := New(fake.NewSimpleClientset(newDeployment("shop", "cart", ptr.To[int32](3))))
	ctx := context.Background()

	assert.NoError(t, s.DeploymentExists(ctx, models.NewWorkloadIdentity("shop", "cart")))

	err := s.DeploymentExists(ctx, models.NewWorkloadIdentity("shop", "missing"))
	require.Error(t, err)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestListDeployments(t *testing.T) {
	s := New(fake.NewSimpleClientset(
		newDeployment("shop", "search", ptr.To[int32](2)),
		newDeployment("shop", "cart", nil),
		newDeployment("web", "frontend", ptr.To[int32](5)),
	))

	got, err := s.ListDeployments(context.Background(), "shop")
	require.NoError(t, err)

	want := []Deployment{
		{Identity: models.NewWorkloadIdentity("shop", "cart"), Replicas: 1, ReadyReplicas: 1},
		{Identity: models.NewWorkloadIdentity("shop", "search"), Replicas: 2, ReadyReplicas: 1},
	}
	assert.Equal(t, want, got)
}

func TestServerVersion(t *testing.T) {
	s := New(fake.NewSimpleClientset())
	_, err := s.ServerVersion()
	assert.NoError(t, err)
}
