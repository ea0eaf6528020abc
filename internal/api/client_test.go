package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jobchat/internal/api"
	"github.com/jobchat/internal/model"
)

func TestListChats(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/chats", func(w http.ResponseWriter, req *http.Request) {
		if got := req.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		q := req.URL.Query()
		if q.Get("page") != "2" || q.Get("page_size") != "10" || q.Get("search") != "backend" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(api.ChatPage{
			Chats:    []model.Chat{{ID: "c1", Type: model.ChatTypePrivate}},
			Page:     2,
			PageSize: 10,
			Total:    11,
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.NewClient(srv.URL, "tok-1", time.Second)
	page, err := client.ListChats(context.Background(), 2, 10, "backend")
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(page.Chats) != 1 || page.Chats[0].ID != "c1" || page.Total != 11 {
		t.Errorf("page = %+v", page)
	}
}

func TestCreateChat(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/chats", func(w http.ResponseWriter, req *http.Request) {
		var in api.CreateChatRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if in.Type != model.ChatTypeGroup || in.GroupName != "untitled" || len(in.UserIDs) != 2 {
			t.Errorf("request = %+v", in)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.Chat{ID: "g1", Type: in.Type, Group: &model.Group{Name: in.GroupName}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.NewClient(srv.URL, "tok", time.Second)
	chat, err := client.CreateChat(context.Background(), api.CreateChatRequest{
		UserIDs:   []string{"u2", "u3"},
		Type:      model.ChatTypeGroup,
		GroupName: "untitled",
	})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if chat.ID != "g1" || chat.Group == nil || chat.Group.Name != "untitled" {
		t.Errorf("chat = %+v", chat)
	}
}

func TestSendMessageErrorMapsToAPIError(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/chats/{chatId}/messages", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"not a member"}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.NewClient(srv.URL, "tok", time.Second)
	_, err := client.SendMessage(context.Background(), "c1", api.SendMessageRequest{
		SenderID: "u1", Type: model.MessageTypeText, Text: "hi",
	})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "not a member" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestUploadFile(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/files", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		f, hdr, err := req.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "cv.pdf" || string(data) != "%PDF-1.4" {
			t.Errorf("file = %q %q", hdr.Filename, data)
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn/files/cv.pdf"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.NewClient(srv.URL, "tok", time.Second)
	url, err := client.UploadFile(context.Background(), "cv.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if url != "https://cdn/files/cv.pdf" {
		t.Errorf("url = %q", url)
	}
}
