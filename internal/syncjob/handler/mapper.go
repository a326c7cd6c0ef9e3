package handler

import (
	"encoding/json"
	"errors"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok {
		return s.Err()
	}
	switch {
	case apperror.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case apperror.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, apperror.ErrJobAlreadyRunning), apperror.IsConflict(err):
		return status.Error(codes.AlreadyExists, err.Error())
	case apperror.IsInvalidStateTransition(err), errors.Is(err, apperror.ErrCounterOverflow):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

// encode turns a JSON-tagged value into a Struct.
func encode(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return s, nil
}

type jobResponse struct {
	*model.SyncJob
	Progress float64 `json:"progress"`
}

func jobView(j *model.SyncJob) jobResponse {
	return jobResponse{SyncJob: j, Progress: j.Progress()}
}

type logResponse struct {
	*model.SyncLog
	Identifier string `json:"identifier"`
}

func logView(l *model.SyncLog) logResponse {
	return logResponse{SyncLog: l, Identifier: l.Identifier()}
}

type snapshotResponse struct {
	*model.InventorySnapshot
	QuantityDifference int `json:"quantity_difference"`
}

func snapshotView(s *model.InventorySnapshot) snapshotResponse {
	return snapshotResponse{InventorySnapshot: s, QuantityDifference: s.QuantityDifference()}
}

type locationResponse struct {
	*model.ShopifyLocation
	FullAddress string `json:"full_address"`
}

func locationView(l *model.ShopifyLocation) locationResponse {
	return locationResponse{ShopifyLocation: l, FullAddress: l.FullAddress()}
}

func field(req *structpb.Struct, name string) *structpb.Value {
	if req == nil {
		return nil
	}
	return req.GetFields()[name]
}

// int64Field accepts numbers and numeric strings; JSON clients often send
// ids as strings.
func int64Field(req *structpb.Struct, name string) int64 {
	v := field(req, name)
	if v == nil {
		return 0
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return int64(k.NumberValue)
	case *structpb.Value_StringValue:
		i, err := json.Number(k.StringValue).Int64()
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

func stringField(req *structpb.Struct, name string) string {
	return field(req, name).GetStringValue()
}

func objectField(req *structpb.Struct, name string) map[string]interface{} {
	s := field(req, name).GetStructValue()
	if s == nil {
		return nil
	}
	return s.AsMap()
}
