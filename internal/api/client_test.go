package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"peoplemeet-client/internal/apitest"
	"peoplemeet-client/internal/models"
)

func newTestServer(t *testing.T) (*apitest.Server, *Client) {
	t.Helper()
	srv, err := apitest.New()
	if err != nil {
		t.Fatalf("apitest.New failed: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv, New(srv.URL, WithTimeout(2*time.Second), WithLogger(log.New(io.Discard, "", 0)))
}

func createUser(t *testing.T, srv *apitest.Server, email string, p models.Profile) (models.ID, string) {
	t.Helper()
	id, token, err := srv.CreateUser(email, "secret", p)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return id, token
}

func TestLoginAndSelf(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()
	id, _ := createUser(t, srv, "ann@example.com", models.Profile{Name: "Ann", Age: models.IntOf(25), Sex: "female"})

	res, err := c.Login(ctx, "ann@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.Token == "" || res.User == nil || res.User.ID != id {
		t.Fatalf("unexpected login response: %+v", res)
	}

	self, err := c.Self(ctx, res.Token)
	if err != nil {
		t.Fatalf("Self failed: %v", err)
	}
	if self.Name != "Ann" || self.Age != models.IntOf(25) {
		t.Fatalf("unexpected self: %+v", self)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv, c := newTestServer(t)
	createUser(t, srv, "ann@example.com", models.Profile{Name: "Ann"})

	_, err := c.Login(context.Background(), "ann@example.com", "nope")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != 401 || apiErr.Message == "" || apiErr.RequestID == "" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("expected 401 to match ErrUnauthorized")
	}
}

func TestSignUpReadsDataEnvelope(t *testing.T) {
	_, c := newTestServer(t)
	res, err := c.SignUp(context.Background(), "bob@example.com", "pw")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if res.Token == "" || res.User == nil || res.User.Email != "bob@example.com" {
		t.Fatalf("unexpected signup response: %+v", res)
	}
}

func TestPasswordRecovery(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()
	createUser(t, srv, "ann@example.com", models.Profile{Name: "Ann"})
	srv.SetRecoveryCode("ann@example.com", "1234")

	if err := c.SendRecoveryCode(ctx, "ann@example.com"); err != nil {
		t.Fatalf("SendRecoveryCode failed: %v", err)
	}
	if err := c.CheckRecoveryCode(ctx, "ann@example.com", "0000"); err == nil {
		t.Fatal("expected wrong code to fail")
	}
	if err := c.CheckRecoveryCode(ctx, "ann@example.com", "1234"); err != nil {
		t.Fatalf("CheckRecoveryCode failed: %v", err)
	}
	if err := c.ChangePassword(ctx, "ann@example.com", "1234", "fresh"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := c.Login(ctx, "ann@example.com", "fresh"); err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}
}

func TestOnlineUsersShapes(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()
	_, token := createUser(t, srv, "me@example.com", models.Profile{Name: "Me"})
	other, _ := createUser(t, srv, "ann@example.com", models.Profile{Name: "Ann"})
	srv.SetOnline(other, true, 50.45, 30.52)

	for _, tc := range []struct {
		name  string
		shape apitest.Shape
		want  int
	}{
		{"array", apitest.ShapeArray, 1},
		{"users", apitest.ShapeUsers, 1},
		{"data", apitest.ShapeData, 1},
		{"bogus", apitest.ShapeBogus, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv.SetOnlineShape(tc.shape)
			users, err := c.OnlineUsers(ctx, token)
			if err != nil {
				t.Fatalf("OnlineUsers failed: %v", err)
			}
			if users == nil || len(users) != tc.want {
				t.Fatalf("expected %d users, got %v", tc.want, users)
			}
			if tc.want == 1 && (users[0].ID != other || users[0].Lat.Value != 50.45) {
				t.Fatalf("unexpected user: %+v", users[0])
			}
		})
	}
}

func TestOnlineUsersPayloadSkipsBadEntries(t *testing.T) {
	var p OnlineUsersPayload
	data := `[{"id":1,"name":"a"},{"id":"x"},{"user_id":"3","name":"c"},7]`
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(p) != 2 || p[0].ID != 1 || p[1].ID != 3 {
		t.Fatalf("unexpected payload: %+v", p)
	}

	for _, body := range []string{`null`, `"nope"`, `{"users":null,"data":{}}`} {
		var q OnlineUsersPayload
		if err := json.Unmarshal([]byte(body), &q); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", body, err)
		}
		if q == nil || len(q) != 0 {
			t.Fatalf("expected empty list for %s, got %v", body, q)
		}
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()
	me, token := createUser(t, srv, "me@example.com", models.Profile{Name: "Me"})
	ann, _ := createUser(t, srv, "ann@example.com", models.Profile{Name: "Ann"})

	snap, err := c.GetMessages(ctx, token)
	if err != nil {
		t.Fatalf("GetMessages on empty history failed: %v", err)
	}
	if len(snap.Users) != 0 || len(snap.Messages) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}

	srv.Deliver(ann, me, "hi")
	if err := c.SendMessage(ctx, token, ann, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	snap, err = c.GetMessages(ctx, token)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	conv := snap.Conversation(ann)
	if len(conv) != 2 || conv[0].MessageText != "hi" || conv[1].SenderID != me {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if snap.Users[ann].Name != "Ann" {
		t.Fatalf("expected counterpart profile, got %+v", snap.Users)
	}

	if err := c.ReadMessages(ctx, token, ann); err != nil {
		t.Fatalf("ReadMessages failed: %v", err)
	}
	if err := c.ReadMessages(ctx, token, ann); err != nil {
		t.Fatalf("second ReadMessages failed: %v", err)
	}
	for _, m := range srv.Messages() {
		if m.ReceiverID == me && !m.IsRead.Bool() {
			t.Fatalf("message %d still unread", m.ID)
		}
	}

	if err := c.RemoveConversation(ctx, token, ann); err != nil {
		t.Fatalf("RemoveConversation failed: %v", err)
	}
	if n := len(srv.Messages()); n != 0 {
		t.Fatalf("expected conversation removed, %d messages left", n)
	}
}

func TestSetOnline(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()
	me, token := createUser(t, srv, "me@example.com", models.Profile{Name: "Me"})

	if err := c.SetOnline(ctx, token, true, models.CoordOf(50.1), models.CoordOf(30.2)); err != nil {
		t.Fatalf("SetOnline(true) failed: %v", err)
	}
	p, _ := srv.Profile(me)
	if !p.IsOnline.Bool() || p.Lat.Value != 50.1 {
		t.Fatalf("expected online with coordinates, got %+v", p)
	}

	// Coordinates are dropped when going offline.
	if err := c.SetOnline(ctx, token, false, models.CoordOf(1), models.CoordOf(2)); err != nil {
		t.Fatalf("SetOnline(false) failed: %v", err)
	}
	p, _ = srv.Profile(me)
	if p.IsOnline.Bool() || p.Lat.Valid {
		t.Fatalf("expected offline without coordinates, got %+v", p)
	}

	var apiErr *Error
	err := c.SetOnline(ctx, token, true, models.Coordinate{}, models.Coordinate{})
	if !errors.As(err, &apiErr) || apiErr.Status != 400 {
		t.Fatalf("expected 400 without coordinates, got %v", err)
	}
}

func TestUpdateProfileAndUploadImage(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()
	me, token := createUser(t, srv, "me@example.com", models.Profile{})

	p, err := c.UpdateProfile(ctx, models.UpdateProfileRequest{
		Token: token, Name: "Me", Age: models.IntOf(30), Sex: "male", Thoughts: "coffee?",
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if p == nil || p.Name != "Me" || p.Thoughts != "coffee?" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	p, err = c.UploadImage(ctx, token, "/tmp/avatar.JPG", []byte("jpegbytes"))
	if err != nil {
		t.Fatalf("UploadImage failed: %v", err)
	}
	if p == nil || p.Image == "" {
		t.Fatalf("expected image name, got %+v", p)
	}
	content, ok := srv.Upload(p.Image)
	if !ok || string(content) != "jpegbytes" {
		t.Fatalf("upload not stored: %q", content)
	}
	stored, _ := srv.Profile(me)
	if stored.Image != p.Image {
		t.Fatalf("profile image not updated: %+v", stored)
	}
}

func TestInvalidTokenIsUnauthorized(t *testing.T) {
	_, c := newTestServer(t)
	_, err := c.GetMessages(context.Background(), "garbage")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestInjectedFailure(t *testing.T) {
	srv, c := newTestServer(t)
	_, token := createUser(t, srv, "me@example.com", models.Profile{})
	srv.Fail("/get_messages", 500, 1)

	_, err := c.GetMessages(context.Background(), token)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != 500 || Message(err) != "injected failure" {
		t.Fatalf("expected injected 500, got %v", err)
	}
	if _, err := c.GetMessages(context.Background(), token); err != nil {
		t.Fatalf("expected recovery after one failure, got %v", err)
	}
}

func TestContextDeadline(t *testing.T) {
	srv, c := newTestServer(t)
	_, token := createUser(t, srv, "me@example.com", models.Profile{})
	srv.Delay("/self", 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Self(ctx, token)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Fatalf("request not bounded by context deadline: %v", elapsed)
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if _, err := c.Self(cancelled, token); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := New("http://"+addr, WithTimeout(time.Second))
	_, err = c.Self(context.Background(), "t")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
