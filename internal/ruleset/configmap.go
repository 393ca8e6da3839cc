package ruleset

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// clusterConfigMapPersister patches a single key ("rules.yaml") of a
// managed ConfigMap in the pod's own namespace. It is the optional
// capability spec.md §9 allows a compliant implementation to omit: when
// no in-cluster config is available cmd/alertproxy does not build one,
// and the Store writes the local YAML path instead.
type clusterConfigMapPersister struct {
	client    kubernetes.Interface
	namespace string
}

// NewClusterConfigMapPersister builds a ConfigMapPersister backed by a
// real typed client-go clientset and the namespace the pod runs in.
func NewClusterConfigMapPersister(client kubernetes.Interface, namespace string) ConfigMapPersister {
	return &clusterConfigMapPersister{client: client, namespace: namespace}
}

const rulesConfigMapKey = "rules.yaml"

func (p *clusterConfigMapPersister) PatchConfigMap(ctx context.Context, name string, yamlDoc []byte) error {
	cms := p.client.CoreV1().ConfigMaps(p.namespace)

	existing, err := cms.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: p.namespace},
			Data:       map[string]string{rulesConfigMapKey: string(yamlDoc)},
		}
		_, err := cms.Create(ctx, cm, metav1.CreateOptions{})
		if err != nil {
			return fmt.Errorf("ruleset: creating configmap %s/%s: %w", p.namespace, name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("ruleset: fetching configmap %s/%s: %w", p.namespace, name, err)
	}

	updated := existing.DeepCopy()
	if updated.Data == nil {
		updated.Data = map[string]string{}
	}
	updated.Data[rulesConfigMapKey] = string(yamlDoc)
	if _, err := cms.Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("ruleset: updating configmap %s/%s: %w", p.namespace, name, err)
	}
	return nil
}
