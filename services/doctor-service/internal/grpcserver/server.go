//go:build protogen

package grpcserver

import (
	"context"

	"github.com/warin-ch/mediq/libs/db"
	doctorv1 "github.com/warin-ch/mediq/protos/gen/doctor/v1"
	"github.com/warin-ch/mediq/services/doctor-service/internal/storage"
	"google.golang.org/grpc"
)

type server struct {
	doctorv1.UnimplementedDoctorServiceServer
	pool *db.Pool
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, pool *db.Pool, repo *storage.Repository) {
	doctorv1.RegisterDoctorServiceServer(grpcServer, &server{pool: pool, repo: repo})
}

// GetClinicHours serves per-doctor scheduling parameters to booking-service.
// Unknown doctors get the clinic defaults so slot listings degrade instead
// of failing.
func (s *server) GetClinicHours(ctx context.Context, req *doctorv1.ClinicHoursRequest) (*doctorv1.ClinicHoursResponse, error) {
	resp := &doctorv1.ClinicHoursResponse{
		DoctorId:        req.GetDoctorId(),
		OpenHour:        10,
		CloseHour:       21,
		SlotStepMinutes: 30,
		HorizonDays:     7,
	}
	if s.repo == nil || req.GetDoctorId() == "" {
		return resp, nil
	}

	doc, err := s.repo.Get(ctx, req.GetDoctorId())
	if err != nil {
		return resp, nil
	}
	if doc.CloseHour*60+doc.CloseMinute > doc.OpenHour*60+doc.OpenMinute {
		resp.OpenHour = int32(doc.OpenHour)
		resp.OpenMinute = int32(doc.OpenMinute)
		resp.CloseHour = int32(doc.CloseHour)
		resp.CloseMinute = int32(doc.CloseMinute)
	}
	if doc.SlotStepMinutes > 0 {
		resp.SlotStepMinutes = int32(doc.SlotStepMinutes)
	}
	if doc.HorizonDays > 0 {
		resp.HorizonDays = int32(doc.HorizonDays)
	}
	return resp, nil
}
