package sesnotify_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"

	"github.com/debnit/MsmeBazaar-sub000/port/sesnotify"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

var book = sesnotify.AddressBookFunc(func(_ context.Context, userID string) (string, error) {
	if userID == "nobody" {
		return "", nil
	}
	return userID + "@example.com", nil
})

func TestSend(t *testing.T) {
	client := &fakeSES{}
	n := sesnotify.New(sesnotify.Config{From: "escrow@example.com", ConfigurationSet: "tx"}, book,
		sesnotify.WithClient(client))

	err := n.Send(context.Background(), "seller-1", "notify-funds-released", map[string]any{
		"escrow_id": "esc_1",
		"amount":    97000,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("sent %d emails, want 1", len(client.inputs))
	}

	in := client.inputs[0]
	if got := in.Destination.ToAddresses; len(got) != 1 || got[0] != "seller-1@example.com" {
		t.Fatalf("to = %v", got)
	}
	if aws.ToString(in.Source) != "escrow@example.com" {
		t.Fatalf("source = %s", aws.ToString(in.Source))
	}
	if aws.ToString(in.Message.Subject.Data) != "Escrow funds released" {
		t.Fatalf("subject = %s", aws.ToString(in.Message.Subject.Data))
	}
	if body := aws.ToString(in.Message.Body.Text.Data); body != "amount: 97000\nescrow_id: esc_1\n" {
		t.Fatalf("body = %q", body)
	}
	if aws.ToString(in.ConfigurationSetName) != "tx" {
		t.Fatalf("configuration set = %s", aws.ToString(in.ConfigurationSetName))
	}
}

func TestSendErrors(t *testing.T) {
	sesErr := errors.New("throttled")

	tests := []struct {
		name    string
		cfg     sesnotify.Config
		user    string
		client  *fakeSES
		wantErr error
		wantMsg string
	}{
		{name: "missing from", cfg: sesnotify.Config{}, user: "u", client: &fakeSES{}, wantMsg: "from address required"},
		{name: "no address", cfg: sesnotify.Config{From: "f@x"}, user: "nobody", client: &fakeSES{}, wantErr: sesnotify.ErrNoAddress},
		{name: "ses failure", cfg: sesnotify.Config{From: "f@x"}, user: "u", client: &fakeSES{err: sesErr}, wantErr: sesErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := sesnotify.New(tt.cfg, book, sesnotify.WithClient(tt.client))
			err := n.Send(context.Background(), tt.user, "notify-seller-funded", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestDryRunSkipsClient(t *testing.T) {
	client := &fakeSES{}
	n := sesnotify.New(sesnotify.Config{From: "f@x", DryRun: true}, book, sesnotify.WithClient(client))
	if err := n.Send(context.Background(), "u", "notify-seller-funded", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(client.inputs) != 0 {
		t.Fatal("dry run reached SES")
	}
}

func TestSubject(t *testing.T) {
	if got := sesnotify.Subject("notify-escrow-refunded"); got != "Escrow refunded" {
		t.Fatalf("Subject = %q", got)
	}
	if got := sesnotify.Subject("notify-something-new"); got != "Escrow update: something new" {
		t.Fatalf("Subject fallback = %q", got)
	}
}
