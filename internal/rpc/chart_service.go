package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/config"
	"github.com/mmm-workbench/stackexplorer/internal/db"
	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
	"github.com/mmm-workbench/stackexplorer/internal/render"
)

// PayloadStore loads stored payloads by id.
type PayloadStore interface {
	LoadPayload(ctx context.Context, id string) (chart.Payload, error)
}

// BuildRequest is the document BuildChart accepts. Exactly one of DatasetID
// and Payload is used; DatasetID wins when both are set. A nil Selection gets
// the default selection and the selector's column choice.
type BuildRequest struct {
	DatasetID string               `json:"dataset_id,omitempty"`
	Payload   *chart.Payload       `json:"payload,omitempty"`
	Selection *chart.Selection     `json:"selection,omitempty"`
	Playback  *chart.PlaybackState `json:"playback,omitempty"`
	ECharts   bool                 `json:"echarts,omitempty"`
}

// UnmarshalJSON decodes a request document. A selection that omits
// show_anomalies keeps anomalies shown, as in DefaultSelection.
func (r *BuildRequest) UnmarshalJSON(data []byte) error {
	type plain BuildRequest
	var doc plain
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Selection != nil {
		var flags struct {
			Selection struct {
				ShowAnomalies *bool `json:"show_anomalies"`
			} `json:"selection"`
		}
		if err := json.Unmarshal(data, &flags); err != nil {
			return err
		}
		if flags.Selection.ShowAnomalies == nil {
			doc.Selection.ShowAnomalies = true
		}
	}
	*r = BuildRequest(doc)
	return nil
}

// BuildResponse is the document BuildChart returns.
type BuildResponse struct {
	Spec    chart.Spec             `json:"spec"`
	Legend  []string               `json:"legend"`
	ECharts map[string]interface{} `json:"echarts,omitempty"`
}

var _ ChartServiceServer = (*ChartService)(nil)

// ChartService composes charts without keeping any view state.
type ChartService struct {
	store PayloadStore
	cfg   *config.ExplorerConfig
	log   zerolog.Logger
}

// NewChartService returns a service that resolves dataset ids through store,
// which may be nil when callers always send payloads inline.
func NewChartService(store PayloadStore, cfg *config.ExplorerConfig) *ChartService {
	if cfg == nil {
		cfg = config.DefaultExplorerConfig()
	}
	return &ChartService{store: store, cfg: cfg, log: monitoring.Component("rpc")}
}

// BuildChart implements ChartServiceServer.
func (s *ChartService) BuildChart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req BuildRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := encodeStruct(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Build composes the chart described by req. Errors carry gRPC status codes.
func (s *ChartService) Build(ctx context.Context, req BuildRequest) (BuildResponse, error) {
	p, err := s.payload(ctx, req)
	if err != nil {
		return BuildResponse{}, err
	}
	p = chart.Enrich(p, s.cfg.EnrichOptions())

	sel := chart.DefaultSelection()
	if req.Selection != nil {
		sel = *req.Selection
	}
	if len(sel.Columns) == 0 {
		choice := chart.SelectSeries(p.ChartData.Columns, sel.TacticFilter, p.AnomaliesTable)
		sel.Columns = choice.Columns
		if choice.SetsChartType && (req.Selection == nil || sel.ChartType == "") {
			sel.ChartType = choice.ChartType
		}
	}
	if sel.ChartType == "" {
		sel.ChartType = chart.ChartLine
	}
	if !sel.ChartType.Valid() {
		return BuildResponse{}, status.Errorf(codes.InvalidArgument, "unknown chart type %q", sel.ChartType)
	}
	var pb chart.PlaybackState
	if req.Playback != nil {
		pb = *req.Playback
	}

	start := time.Now()
	spec := chart.Compose(p.ChartData, p.AnomaliesTable, p.Anomalies, sel, pb, s.cfg.ComposeOptions())
	extrema, anomalies := spec.OverlayCounts()
	monitoring.RecordChartBuild(string(spec.ChartType), time.Since(start), extrema, anomalies)

	resp := BuildResponse{Spec: spec, Legend: spec.LegendEntries()}
	if req.ECharts {
		resp.ECharts = render.EChartsOptions(spec)
	}
	s.log.Debug().Str("dataset_id", req.DatasetID).Int("series", len(spec.Series)).Msg("chart built")
	return resp, nil
}

func (s *ChartService) payload(ctx context.Context, req BuildRequest) (chart.Payload, error) {
	switch {
	case req.DatasetID != "":
		if s.store == nil {
			return chart.Payload{}, status.Error(codes.FailedPrecondition, "no dataset store configured")
		}
		p, err := s.store.LoadPayload(ctx, req.DatasetID)
		if errors.Is(err, db.ErrNotFound) {
			return p, status.Error(codes.NotFound, err.Error())
		}
		if err != nil {
			return p, status.Error(codes.Internal, err.Error())
		}
		return p, nil
	case req.Payload != nil:
		return *req.Payload, nil
	default:
		return chart.Payload{}, status.Error(codes.InvalidArgument, "one of dataset_id or payload is required")
	}
}

func decodeStruct(in *structpb.Struct, v interface{}) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func encodeStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// EncodeRequest turns req into the Struct BuildChart expects.
func EncodeRequest(req BuildRequest) (*structpb.Struct, error) {
	return encodeStruct(req)
}

// DecodeResponse reads a BuildChart reply.
func DecodeResponse(out *structpb.Struct) (BuildResponse, error) {
	var resp BuildResponse
	err := decodeStruct(out, &resp)
	return resp, err
}
