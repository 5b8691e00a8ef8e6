//go:build protogen

package hours

import (
	"context"
	"time"

	"github.com/warin-ch/mediq/libs/grpcx"
	doctorv1 "github.com/warin-ch/mediq/protos/gen/doctor/v1"
)

// Schedule describes a doctor's bookable window as maintained by
// doctor-service. Zero StepMinutes means the caller's default applies.
type Schedule struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
	StepMinutes int
	HorizonDays int
}

type Provider interface {
	GetSchedule(ctx context.Context, doctorID string) (Schedule, error)
}

type grpcProvider struct {
	client doctorv1.DoctorServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: doctorv1.NewDoctorServiceClient(conn)}, nil
}

func (p *grpcProvider) GetSchedule(ctx context.Context, doctorID string) (Schedule, error) {
	resp, err := p.client.GetClinicHours(ctx, &doctorv1.ClinicHoursRequest{DoctorId: doctorID})
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{
		OpenHour:    int(resp.GetOpenHour()),
		OpenMinute:  int(resp.GetOpenMinute()),
		CloseHour:   int(resp.GetCloseHour()),
		CloseMinute: int(resp.GetCloseMinute()),
		StepMinutes: int(resp.GetSlotStepMinutes()),
		HorizonDays: int(resp.GetHorizonDays()),
	}, nil
}
