package messaging

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestConsoleServiceReadsResponses(t *testing.T) {
	in := strings.NewReader("привет\nкупить\n")
	var out bytes.Buffer
	s := NewConsoleService(WithConsoleStreams(in, &out))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	for _, want := range []string{"привет", "купить"} {
		select {
		case resp := <-s.Responses():
			if resp.From != ConsoleUserID {
				t.Errorf("expected console user, got %q", resp.From)
			}
			if resp.Body != want {
				t.Errorf("expected body %q, got %q", want, resp.Body)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestConsoleServiceSendMessage(t *testing.T) {
	var out bytes.Buffer
	s := NewConsoleService(WithConsoleStreams(strings.NewReader(""), &out))

	if err := s.SendMessage(context.Background(), ConsoleUserID, "Введите город"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if !strings.Contains(out.String(), "Введите город") {
		t.Errorf("output missing message body: %q", out.String())
	}
}

func TestConsoleServiceSendImage(t *testing.T) {
	var out bytes.Buffer
	s := NewConsoleService(
		WithConsoleStreams(strings.NewReader(""), &out),
		WithConsoleMediaDir(t.TempDir()),
	)

	if err := s.SendImage(context.Background(), ConsoleUserID, "Ваш билет", []byte("png-bytes")); err != nil {
		t.Fatalf("SendImage failed: %v", err)
	}
	if !strings.Contains(out.String(), "Ваш билет") || !strings.Contains(out.String(), ".png") {
		t.Errorf("output missing caption or image path: %q", out.String())
	}
}

func TestConsoleServiceProfile(t *testing.T) {
	s := NewConsoleService(WithConsoleUserName("Тестовый Пользователь"))

	profile, err := s.Profile(context.Background(), ConsoleUserID)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile == nil || profile.DisplayName != "Тестовый Пользователь" {
		t.Errorf("unexpected profile: %+v", profile)
	}

	other, err := s.Profile(context.Background(), "someone-else")
	if err != nil || other != nil {
		t.Errorf("expected (nil, nil) for unknown user, got %v, %v", other, err)
	}
}

func TestConsoleServiceStoppedSendFails(t *testing.T) {
	s := NewConsoleService(WithConsoleStreams(strings.NewReader(""), &bytes.Buffer{}))
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := s.SendMessage(context.Background(), ConsoleUserID, "x"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
