// Package inventory resolves configured device pairs against the external
// measurement platform's inventory API.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trafficsense/domain/core"
	"trafficsense/internal/config"
	"trafficsense/internal/errors"
)

// Client talks to the source and target inventory endpoints with basic
// authentication. Requests are synchronous and never retried.
type Client struct {
	source     config.AuthConfig
	target     config.AuthConfig
	httpClient *http.Client
}

// NewClient builds an inventory client over both tenants.
func NewClient(source, target config.AuthConfig) *Client {
	return &Client{
		source: source,
		target: target,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// managedObject is the subset of the platform's inventory payload the
// pipeline needs.
type managedObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type inventoryPage struct {
	ManagedObjects []managedObject `json:"managedObjects"`
}

// Resolve maps every configured {source, target} device pair to a sensor
// descriptor. It fails when any source device cannot be found, since a
// partial sensor list would silently skip data.
func (c *Client) Resolve(ctx context.Context, devices []config.DevicePair) ([]core.Sensor, error) {
	if len(devices) == 0 {
		return nil, errors.ConfigInvalid("no devices to resolve")
	}

	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.Source.String()
	}

	objects, err := c.queryByIDs(ctx, c.source, ids)
	if err != nil {
		return nil, errors.InventoryError(err)
	}
	byID := make(map[string]managedObject, len(objects))
	for _, obj := range objects {
		byID[obj.ID] = obj
	}

	sensors := make([]core.Sensor, 0, len(devices))
	for _, d := range devices {
		obj, ok := byID[d.Source.String()]
		if !ok {
			return nil, errors.InventoryError(
				fmt.Errorf("failed to find a device for source device id %s", d.Source))
		}
		// The target device must exist before results are uploaded to it.
		if _, err := c.getObject(ctx, c.target, d.Target.String()); err != nil {
			return nil, errors.InventoryError(err)
		}
		sensors = append(sensors, core.Sensor{
			Name:     obj.Name,
			SourceID: core.SensorID(obj.ID),
			TargetID: d.Target,
		})
	}
	return sensors, nil
}

// queryByIDs fetches a batch of managed objects by their IDs.
func (c *Client) queryByIDs(ctx context.Context, auth config.AuthConfig, ids []string) ([]managedObject, error) {
	endpoint := fmt.Sprintf("%s/inventory/managedObjects?ids=%s&pageSize=%d",
		strings.TrimRight(auth.BaseURL, "/"), url.QueryEscape(strings.Join(ids, ",")), len(ids))

	var page inventoryPage
	if err := c.getJSON(ctx, auth, endpoint, &page); err != nil {
		return nil, err
	}
	return page.ManagedObjects, nil
}

// getObject fetches a single managed object by ID.
func (c *Client) getObject(ctx context.Context, auth config.AuthConfig, id string) (*managedObject, error) {
	endpoint := fmt.Sprintf("%s/inventory/managedObjects/%s",
		strings.TrimRight(auth.BaseURL, "/"), url.PathEscape(id))

	var obj managedObject
	if err := c.getJSON(ctx, auth, endpoint, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

func (c *Client) getJSON(ctx context.Context, auth config.AuthConfig, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(tenantUser(auth), auth.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("inventory request %s returned %d: %s", endpoint, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// tenantUser prefixes the username with the tenant the way the platform
// expects for basic auth.
func tenantUser(auth config.AuthConfig) string {
	if auth.TenantID == "" {
		return auth.Username
	}
	return auth.TenantID + "/" + auth.Username
}
