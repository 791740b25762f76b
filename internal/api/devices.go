package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/quantum-task-core/internal/device"
	"github.com/nerrad567/quantum-task-core/internal/events"
)

func deviceNotFound(id string) string {
	return fmt.Sprintf("deviceId=%s is not found.", id)
}

// handleListDevices returns every registered device.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}

	resp := make([]deviceResponse, 0, len(devices))
	for i := range devices {
		resp = append(resp, toDeviceResponse(&devices[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceId")

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, deviceNotFound(id))
			return
		}
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceResponse(dev))
}

// handleUpdateDevice applies one provider command to a device.
//
// The body carries a "command" discriminator:
//   - DeviceStatusUpdate: status, available_at
//   - DevicePendingJobsUpdate: n_pending_jobs
//   - DeviceCalibrationUpdate: device_info, calibrated_at
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceId")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	cmd, err := device.DecodeCommand(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	dev, err := s.devices.Apply(r.Context(), id, cmd)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrNotFound):
			writeNotFound(w, deviceNotFound(id))
		case errors.Is(err, device.ErrInvalidUpdate):
			writeBadRequest(w, err.Error())
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	s.logger.Info("device updated",
		"device_id", dev.ID,
		"command", cmd.Name(),
		"status", dev.Status,
		"pending_tasks", dev.PendingTasks,
	)
	s.publish(r.Context(), events.DeviceUpdated(dev))
	writeMessage(w, http.StatusOK, "Device's data updated")
}
