package services

import (
	"context"
	"errors"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joho/godotenv"

	"github.com/kmishra1204/OneDialAI-UAT/models"
)

// ErrNotFound is returned when a referenced session or agent does not exist,
// or when a guarded status transition matches no document.
var ErrNotFound = errors.New("not found")

// errNoTransition aborts a transaction whose status guard did not match.
var errNoTransition = errors.New("no transition")

// FirestoreClient wraps the firebase client
type FirestoreClient struct {
	client *firestore.Client
}

var firestoreClient *FirestoreClient

// InitFirestore initializes the Firestore client
func InitFirestore() (*FirestoreClient, error) {
	if firestoreClient != nil {
		return firestoreClient, nil
	}

	_ = godotenv.Load()

	ctx := context.Background()

	var app *firebase.App
	var err error

	// Check if running in production with environment variable
	if credJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON"); credJSON != "" {
		opt := option.WithCredentialsJSON([]byte(credJSON))
		app, err = firebase.NewApp(ctx, nil, opt)
	} else if credFile := os.Getenv("FIREBASE_CREDENTIALS_FILE"); credFile != "" {
		opt := option.WithCredentialsFile(credFile)
		app, err = firebase.NewApp(ctx, nil, opt)
	} else {
		// Try to use default credentials
		app, err = firebase.NewApp(ctx, nil)
	}

	if err != nil {
		return nil, err
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, err
	}

	firestoreClient = &FirestoreClient{client: client}

	return firestoreClient, nil
}

// GetFirestoreClient returns the singleton instance of FirestoreClient
func GetFirestoreClient() (*FirestoreClient, error) {
	if firestoreClient == nil {
		return InitFirestore()
	}
	return firestoreClient, nil
}

func sessionsCollection() string {
	if name := os.Getenv("FIRESTORE_SESSIONS_COLLECTION"); name != "" {
		return name
	}
	return "sessions"
}

func agentsCollection() string {
	if name := os.Getenv("FIRESTORE_AGENTS_COLLECTION"); name != "" {
		return name
	}
	return "agents"
}

// GetSession retrieves a session by its ID
func (fc *FirestoreClient) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}

	doc, err := fc.client.Collection(sessionsCollection()).Doc(sessionID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := doc.DataTo(&session); err != nil {
		return nil, err
	}
	session.SessionID = doc.Ref.ID

	return &session, nil
}

// GetAgent retrieves an agent by its ID
func (fc *FirestoreClient) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	if agentID == "" {
		return nil, ErrNotFound
	}

	doc, err := fc.client.Collection(agentsCollection()).Doc(agentID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var agent models.Agent
	if err := doc.DataTo(&agent); err != nil {
		return nil, err
	}
	agent.AgentID = doc.Ref.ID

	return &agent, nil
}

// CreateSession saves a new session document keyed by its session ID
func (fc *FirestoreClient) CreateSession(ctx context.Context, session *models.Session) error {
	ref := fc.client.Collection(sessionsCollection()).Doc(session.SessionID)
	_, err := ref.Set(ctx, session)
	return err
}

// StartSession transitions a session to active, recording the start time.
// The transition only applies while the session has not already moved past
// scheduled; the status check and the write run in one transaction so a
// duplicate concurrent delivery cannot transition twice. ErrNotFound is
// returned when the session is missing or no longer eligible.
func (fc *FirestoreClient) StartSession(ctx context.Context, sessionID string) (*models.Session, error) {
	ref := fc.client.Collection(sessionsCollection()).Doc(sessionID)

	var session models.Session
	err := fc.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := doc.DataTo(&session); err != nil {
			return err
		}
		session.SessionID = doc.Ref.ID

		switch session.Status {
		case models.StatusActive, models.StatusProcessing, models.StatusCompleted, models.StatusCancelled:
			return ErrNotFound
		}

		now := time.Now()
		session.Status = models.StatusActive
		session.StartedAt = &now
		session.UpdatedAt = now

		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: models.StatusActive},
			{Path: "started_at", Value: now},
			{Path: "updated_at", Value: now},
		})
	})
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// EndSession transitions an active session to processing, recording the end
// time. A session that already left active is a harmless no-op: the return
// value reports whether this call performed the transition.
func (fc *FirestoreClient) EndSession(ctx context.Context, sessionID string) (bool, error) {
	ref := fc.client.Collection(sessionsCollection()).Doc(sessionID)

	err := fc.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var session models.Session
		if err := doc.DataTo(&session); err != nil {
			return err
		}
		if session.Status != models.StatusActive {
			return errNoTransition
		}

		now := time.Now()
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: models.StatusProcessing},
			{Path: "ended_at", Value: now},
			{Path: "updated_at", Value: now},
		})
	})
	if errors.Is(err, errNoTransition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// AttachTranscript records the transcript reference on a session, independent
// of its current status
func (fc *FirestoreClient) AttachTranscript(ctx context.Context, sessionID, url string) error {
	return fc.attachArtifact(ctx, sessionID, "transcript_url", url)
}

// AttachRecording records the recording reference on a session, independent
// of its current status
func (fc *FirestoreClient) AttachRecording(ctx context.Context, sessionID, url string) error {
	return fc.attachArtifact(ctx, sessionID, "recording_url", url)
}

func (fc *FirestoreClient) attachArtifact(ctx context.Context, sessionID, field, url string) error {
	ref := fc.client.Collection(sessionsCollection()).Doc(sessionID)

	_, err := ref.Update(ctx, []firestore.Update{
		{Path: field, Value: url},
		{Path: "updated_at", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

// Close closes the Firestore client
func (fc *FirestoreClient) Close() error {
	if fc.client != nil {
		return fc.client.Close()
	}
	return nil
}
