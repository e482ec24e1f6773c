package router

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"cdnrouter/internal/dispersion"
)

// Candidate is one node returned by Route, in the order it should be tried.
type Candidate struct {
	ID     string
	Addr   string
	Weight float64
}

// RingInfo is the GetRing debug view.
type RingInfo struct {
	Version uint64
	Points  int
	Nodes   []Candidate
	Owner   string
}

// Client calls a Router service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the router at target. Plaintext transport is
// used unless opts override it.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Route asks the router for the candidates serving key.
func (c *Client) Route(ctx context.Context, key string, d dispersion.Dispersion) ([]Candidate, error) {
	return c.route(ctx, map[string]any{
		"key": key,
		"dispersion": map[string]any{
			"limit":    d.Limit,
			"shuffled": d.Shuffled,
		},
	})
}

// RouteJSON is Route with the dispersion given as its JSON configuration,
// e.g. {"dispersion": {"limit": 2, "shuffled": "true"}}.
func (c *Client) RouteJSON(ctx context.Context, key, dispersionJSON string) ([]Candidate, error) {
	return c.route(ctx, map[string]any{
		"key":             key,
		"dispersion_json": dispersionJSON,
	})
}

func (c *Client) route(ctx context.Context, fields map[string]any) ([]Candidate, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, routeMethod, req, resp); err != nil {
		return nil, err
	}
	return candidates(resp.GetFields()["nodes"]), nil
}

// GetRing fetches the router's ring view; key is optional.
func (c *Client) GetRing(ctx context.Context, key string) (*RingInfo, error) {
	fields := map[string]any{}
	if key != "" {
		fields["key"] = key
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, getRingMethod, req, resp); err != nil {
		return nil, err
	}
	f := resp.GetFields()
	return &RingInfo{
		Version: uint64(f["version"].GetNumberValue()),
		Points:  int(f["points"].GetNumberValue()),
		Nodes:   candidates(f["nodes"]),
		Owner:   f["owner"].GetStringValue(),
	}, nil
}

// SetWeight updates one node's weight and returns the new pool version.
func (c *Client) SetWeight(ctx context.Context, id string, weight float64) (uint64, error) {
	return c.update(ctx, setWeightMethod, map[string]any{"id": id, "weight": weight})
}

// AddNode adds or replaces a node and returns the new pool version.
func (c *Client) AddNode(ctx context.Context, id, addr string, weight float64) (uint64, error) {
	return c.update(ctx, addNodeMethod, map[string]any{"id": id, "addr": addr, "weight": weight})
}

// RemoveNode drops a node and returns the new pool version.
func (c *Client) RemoveNode(ctx context.Context, id string) (uint64, error) {
	return c.update(ctx, removeNodeMethod, map[string]any{"id": id})
}

func (c *Client) update(ctx context.Context, method string, fields map[string]any) (uint64, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return 0, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return 0, err
	}
	return uint64(resp.GetFields()["version"].GetNumberValue()), nil
}

func candidates(v *structpb.Value) []Candidate {
	values := v.GetListValue().GetValues()
	out := make([]Candidate, 0, len(values))
	for _, item := range values {
		f := item.GetStructValue().GetFields()
		out = append(out, Candidate{
			ID:     f["id"].GetStringValue(),
			Addr:   f["addr"].GetStringValue(),
			Weight: f["weight"].GetNumberValue(),
		})
	}
	return out
}

// ErrNoCandidates is returned by TryCandidates for an empty candidate list.
var ErrNoCandidates = errors.New("router: no candidates to try")

// TryCandidates calls fn for each candidate in order until one succeeds,
// returning that result and candidate. If every candidate fails, the errors
// are joined. A cancelled context stops the walk.
func TryCandidates[T any](ctx context.Context, cands []Candidate, fn func(context.Context, Candidate) (T, error)) (T, Candidate, error) {
	var zero T
	if len(cands) == 0 {
		return zero, Candidate{}, ErrNoCandidates
	}

	var errs []error
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := fn(ctx, c)
		if err == nil {
			return res, c, nil
		}
		errs = append(errs, fmt.Errorf("%s (%s): %w", c.ID, c.Addr, err))
	}
	return zero, Candidate{}, errors.Join(errs...)
}
