package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cvhariharan/alice/activity"
	"github.com/cvhariharan/alice/delivery"
	"github.com/cvhariharan/alice/models"
)

const hostMetaTemplate = `<?xml version="1.0"?>
<XRD xmlns="http://docs.oasis-open.org/ns/xri/xrd-1.0">
    <Link rel="lrdd" type="application/xrd+xml" template="https://%s/.well-known/webfinger?resource={uri}" />
</XRD>
`

func (s *Server) hostMeta(c echo.Context) error {
	body := fmt.Sprintf(hostMetaTemplate, s.composer.Identity().Domain)
	return c.Blob(http.StatusOK, "application/xml", []byte(body))
}

func (s *Server) webfinger(c echo.Context) error {
	id := s.composer.Identity()
	subject := "acct:" + id.Username + "@" + id.Domain

	if resource := c.QueryParam("resource"); resource != "" && resource != subject && resource != id.ActorID() {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Webfinger not found"})
	}

	return c.JSON(http.StatusOK, models.WebFingerResp{
		Subject: subject,
		Links: []models.Link{
			{
				Rel:  "self",
				Type: models.ActivityJSONType,
				Href: id.ActorID(),
			},
		},
	})
}

func (s *Server) actor(c echo.Context) error {
	pub, err := s.keys.PublicKeyPEM()
	if err != nil {
		s.logger.Error("public key unavailable", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Actor not available"})
	}

	id := s.composer.Identity()
	b, err := json.Marshal(models.Actor{
		Context:           models.ActorContext,
		ID:                id.ActorID(),
		Type:              "Person",
		PreferredUsername: id.Username,
		Inbox:             id.InboxURL(),
		PubKey: models.PublicKey{
			ID:        id.KeyID(),
			Owner:     id.ActorID(),
			PubKeyPem: string(pub),
		},
	})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, models.ActivityJSONType, b)
}

// inbox accepts anything and only logs what arrived. Signatures are not checked.
func (s *Server) inbox(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		s.logger.Warn("failed to read inbox body", zap.Error(err))
		return c.NoContent(http.StatusBadRequest)
	}

	var hdr models.ActivityHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid activity"})
	}

	s.logger.Info("inbox received activity",
		zap.String("type", hdr.Type),
		zap.String("id", hdr.ID),
		zap.String("actor", hdr.Actor))
	return c.NoContent(http.StatusAccepted)
}

type deliveryRequest struct {
	Inbox     string `json:"inbox"`
	InReplyTo string `json:"in_reply_to"`
	Content   string `json:"content"`
	To        string `json:"to"`
}

type deliveryResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// deliver composes a reply and pushes it to one remote inbox.
func (s *Server) deliver(c echo.Context) error {
	var req deliveryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	target, err := delivery.ParseInboxURL(req.Inbox)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	doc, err := s.composer.Compose(activity.Reply{
		InReplyTo: req.InReplyTo,
		Content:   req.Content,
		To:        req.To,
		Published: s.now(),
	})
	if err != nil {
		return c.JSON(statusFor(err), map[string]string{"error": err.Error()})
	}

	res, err := s.deliverer.Deliver(c.Request().Context(), doc, target)
	if err != nil {
		body := map[string]interface{}{"error": err.Error()}
		var derr *delivery.DeliveryError
		if errors.As(err, &derr) && derr.Kind == delivery.RemoteRejected {
			body["remote_status"] = derr.Status
			body["remote_body"] = derr.Body
		}
		return c.JSON(statusFor(err), body)
	}

	return c.JSON(http.StatusOK, deliveryResponse{Status: res.Status, Body: res.Body})
}

func statusFor(err error) int {
	var (
		cerr *activity.CompositionError
		derr *delivery.DeliveryError
	)
	switch {
	case errors.As(err, &cerr):
		return http.StatusBadRequest
	case errors.As(err, &derr):
		if derr.Kind == delivery.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
