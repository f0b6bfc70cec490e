package internal

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const appName = "mongo-opcheck"

// disconnectTimeout bounds Disconnect independently of the probe deadline,
// which has usually expired by the time cleanup runs on the failure path.
const disconnectTimeout = 2 * time.Second

type DatabaseConnection struct {
	Host        string
	Port        int
	Username    string
	Password    string
	AuthSource  string
	Timeout     time.Duration
	MongoClient *mongo.Client
	Logger      *logrus.Logger
}

// currentOpReply is the part of the currentOp command reply we care about.
type currentOpReply struct {
	InProg []bson.Raw `bson:"inprog"`
}

func (d *DatabaseConnection) URI() string {
	return "mongodb://" + net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

func (d *DatabaseConnection) clientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(d.URI()).
		SetAppName(appName).
		SetDirect(true)

	if d.Timeout > 0 {
		opts.SetServerSelectionTimeout(d.Timeout).SetConnectTimeout(d.Timeout)
	}

	if d.Username != "" {
		cred := options.Credential{
			Username: d.Username,
			Password: d.Password,
		}
		if d.AuthSource != "" {
			cred.AuthSource = d.AuthSource
		}
		opts.SetAuth(cred)
	}
	return opts
}

// Connect creates the client. The driver connects lazily, so an unreachable
// server is normally reported by the first command rather than here.
func (d *DatabaseConnection) Connect(ctx context.Context) error {
	var err error
	d.MongoClient, err = mongo.Connect(ctx, d.clientOptions())
	if err != nil {
		return fmt.Errorf("connect to %s: %w", d.URI(), err)
	}
	d.Logger.Debugf("created mongo client for %s", d.URI())
	return nil
}

// CurrentOperationCount runs currentOp against the admin database and returns
// the number of in-progress operations.
func (d *DatabaseConnection) CurrentOperationCount(ctx context.Context) (int, error) {
	if d.MongoClient == nil {
		return 0, fmt.Errorf("not connected to %s", d.URI())
	}

	var reply currentOpReply
	err := d.MongoClient.Database("admin").
		RunCommand(ctx, bson.D{{Key: "currentOp", Value: 1}}).
		Decode(&reply)
	if err != nil {
		return 0, err
	}

	d.Logger.Debugf("currentOp on %s returned %d operations", d.URI(), len(reply.InProg))
	return len(reply.InProg), nil
}

func (d *DatabaseConnection) Disconnect() {
	if d.MongoClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	if err := d.MongoClient.Disconnect(ctx); err != nil {
		d.Logger.Warnf("disconnect from %s: %s", d.URI(), err)
	}
	d.MongoClient = nil
}

// Probe connects, counts current operations and always disconnects.
func (d *DatabaseConnection) Probe(ctx context.Context) (int, error) {
	if err := d.Connect(ctx); err != nil {
		return 0, err
	}
	defer d.Disconnect()

	return d.CurrentOperationCount(ctx)
}
