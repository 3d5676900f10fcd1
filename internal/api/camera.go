package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/bellbridge/internal/api/models"
	"github.com/smazurov/bellbridge/internal/camera"
	"github.com/smazurov/bellbridge/internal/hap"
)

var errInvalidAuthType = errors.New("invalid authentication type")

// registerCameraRoutes registers stream negotiation and snapshot endpoints.
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/camera/capabilities",
		Summary:     "Get Capabilities",
		Description: "Resolutions, codecs and transport the camera currently advertises",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.CapabilitiesRequest) (*models.CapabilitiesResponse, error) {
		cam, err := s.camera(input.Camera)
		if err != nil {
			return nil, err
		}
		return &models.CapabilitiesResponse{Body: capabilitiesToAPI(cam.Name(), cam.Capabilities())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "prepare-session",
		Method:      http.MethodPost,
		Path:        "/api/camera/sessions",
		Summary:     "Prepare Session",
		Description: "Register a client's SRTP endpoints and return the camera's. Accepts JSON fields or a base64 HomeKit TLV8 value.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *models.SetupRequest) (*models.SetupResponse, error) {
		cam, err := s.camera(input.Camera)
		if err != nil {
			return nil, err
		}

		req, err := setupFromAPI(input.Body)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error(), err)
		}

		resp, err := cam.PrepareSession(ctx, req)
		if err != nil {
			return nil, mapCameraError(err)
		}

		out := setupToAPI(resp)
		if input.Body.TLV8 != "" {
			encoded, err := hap.EncodeSetupEndpoints(resp)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to encode setup response", err)
			}
			out.TLV8 = encoded
		}
		return &models.SetupResponse{Body: out}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stream-request",
		Method:        http.MethodPost,
		Path:          "/api/camera/sessions/{session_id}/stream",
		Summary:       "Stream Request",
		Description:   "Start, stop or reconfigure a prepared session's stream",
		Tags:          []string{"camera"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{400, 401, 404, 500, 502, 503},
	}, func(ctx context.Context, input *models.StreamRequest) (*struct{}, error) {
		cam, err := s.camera(input.Camera)
		if err != nil {
			return nil, err
		}

		req, err := streamFromAPI(input.SessionID, input.Body)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error(), err)
		}

		if err := cam.ProcessStreamRequest(ctx, req); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/camera/sessions",
		Summary:     "List Sessions",
		Description: "Negotiated sessions with their state and transcoder progress",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.SessionListRequest) (*models.SessionListResponse, error) {
		cam, err := s.camera(input.Camera)
		if err != nil {
			return nil, err
		}

		sessions := cam.Sessions()
		out := make([]models.SessionData, 0, len(sessions))
		for _, sess := range sessions {
			out = append(out, s.sessionToAPI(sess))
		}
		active := cam.ActiveCalls()
		if active == nil {
			active = []string{}
		}
		return &models.SessionListResponse{
			Body: models.SessionListData{
				Camera:      cam.Name(),
				Sessions:    out,
				Count:       len(out),
				ActiveCalls: active,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/camera/snapshot",
		Summary:     "Snapshot",
		Description: "Latest still image from the doorbell",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 502},
	}, func(ctx context.Context, input *models.SnapshotRequest) (*models.SnapshotResponse, error) {
		cam, err := s.camera(input.Camera)
		if err != nil {
			return nil, err
		}

		image, format, err := cam.HandleSnapshotRequest(ctx, input.Width, input.Height)
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.SnapshotResponse{
			ContentType:  "image/" + format,
			CacheControl: "no-store",
			Body:         image,
		}, nil
	})
}

// camera returns the named camera, or the first one when name is empty.
func (s *Server) camera(name string) (Camera, error) {
	if len(s.cameras) == 0 {
		return nil, huma.Error404NotFound("no cameras configured")
	}
	if name == "" {
		return s.cameras[0], nil
	}
	for _, c := range s.cameras {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, huma.Error404NotFound("camera not found: " + name)
}

// mapCameraError maps domain errors to HTTP errors
func mapCameraError(err error) error {
	var streamErr *camera.StreamError
	if !errors.As(err, &streamErr) {
		return huma.Error500InternalServerError("internal server error", err)
	}
	switch streamErr.Code {
	case camera.ErrCodeInvalidSetup:
		return huma.Error400BadRequest(streamErr.Message, err)
	case camera.ErrCodeSessionNotFound:
		return huma.Error404NotFound(streamErr.Message, err)
	case camera.ErrCodeCallFailed, camera.ErrCodePunchFailed, camera.ErrCodeSnapshotFailed:
		return huma.Error502BadGateway(streamErr.Message, err)
	case camera.ErrCodeNoTranscoder:
		return huma.Error503ServiceUnavailable(streamErr.Message, err)
	default:
		return huma.Error500InternalServerError(streamErr.Message, err)
	}
}

func setupFromAPI(body models.SetupRequestData) (camera.SetupRequest, error) {
	if body.TLV8 != "" {
		return hap.DecodeSetupEndpoints(body.TLV8)
	}
	req := camera.SetupRequest{
		SessionID:     body.SessionID,
		TargetAddress: body.TargetAddress,
	}
	if body.Video != nil {
		req.Video = camera.Endpoint{Port: body.Video.Port, Key: body.Video.Key}
	}
	if body.Audio != nil {
		req.Audio = camera.Endpoint{Port: body.Audio.Port, Key: body.Audio.Key}
	}
	return req, nil
}

func setupToAPI(resp camera.SetupResponse) models.SetupData {
	return models.SetupData{
		SessionID:   resp.SessionID,
		Address:     resp.Address,
		AddressType: resp.AddressType,
		Video:       models.EndpointResponseData{Port: resp.Video.Port, SSRC: resp.Video.SSRC, Key: resp.Video.Key},
		Audio:       models.EndpointResponseData{Port: resp.Audio.Port, SSRC: resp.Audio.SSRC, Key: resp.Audio.Key},
	}
}

var (
	errSessionMismatch = errors.New("TLV8 session id does not match the path")
	errNoRequestType   = errors.New("type or tlv8 is required")
)

func streamFromAPI(sessionID string, body models.StreamRequestData) (camera.StreamRequest, error) {
	if body.TLV8 != "" {
		req, err := hap.DecodeSelectedStream(body.TLV8)
		if err != nil {
			return camera.StreamRequest{}, err
		}
		if req.SessionID != sessionID {
			return camera.StreamRequest{}, errSessionMismatch
		}
		return req, nil
	}

	if body.Type == "" {
		return camera.StreamRequest{}, errNoRequestType
	}
	req := camera.StreamRequest{SessionID: sessionID, Type: camera.RequestType(body.Type)}
	if v := body.Video; v != nil {
		req.Video = &camera.VideoParams{
			Profile:     v.Profile,
			Level:       v.Level,
			Width:       v.Width,
			Height:      v.Height,
			FPS:         v.FPS,
			PayloadType: v.PayloadType,
			MaxBitrate:  v.MaxBitrate,
			MTU:         v.MTU,
		}
	}
	if a := body.Audio; a != nil {
		req.Audio = &camera.AudioParams{
			Codec:       a.Codec,
			Channels:    a.Channels,
			BitrateMode: a.BitrateMode,
			SampleRate:  a.SampleRate,
			PacketTime:  a.PacketTime,
			PayloadType: a.PayloadType,
			MaxBitrate:  a.MaxBitrate,
		}
	}
	return req, nil
}

func capabilitiesToAPI(name string, caps camera.Capabilities) models.CapabilitiesData {
	out := models.CapabilitiesData{
		Camera:       name,
		SRTP:         caps.SRTP,
		Resolutions:  make([]models.ResolutionData, 0, len(caps.Resolutions)),
		Profiles:     caps.Profiles,
		Levels:       caps.Levels,
		AudioCodecs:  make([]models.AudioCodecData, 0, len(caps.AudioCodecs)),
		ComfortNoise: caps.ComfortNoise,
	}
	for _, r := range caps.Resolutions {
		out.Resolutions = append(out.Resolutions, models.ResolutionData{Width: r.Width, Height: r.Height, FPS: r.FPS})
	}
	for _, c := range caps.AudioCodecs {
		out.AudioCodecs = append(out.AudioCodecs, models.AudioCodecData{Type: c.Type, SampleRate: c.SampleRate})
	}
	return out
}

func (s *Server) sessionToAPI(sess *camera.Session) models.SessionData {
	out := models.SessionData{
		SessionID:  sess.ID,
		Client:     sess.Client,
		State:      string(sess.State),
		Mode:       string(sess.Mode),
		Live:       sess.Live,
		Resolution: sess.Video.Requested().String(),
		CreatedAt:  sess.CreatedAt,
	}
	if s.options.Stats != nil {
		if st, ok := s.options.Stats.Stats(sess.ID); ok {
			out.Transcoder = &models.TranscoderData{FPS: st.FPS, DroppedFrames: st.DroppedFrames, Speed: st.Speed}
		}
	}
	return out
}
