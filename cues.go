/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Seednode/quizduel/games/duel"
)

// CueEvent is one sound or light effect requested by a duel.
type CueEvent struct {
	Room string    `json:"room"`
	Duel string    `json:"duel"`
	Cue  duel.Cue  `json:"cue"`
	At   time.Time `json:"at"`
}

// CueSink plays or forwards cues. Implementations must not block, they are
// called from the game loop.
type CueSink interface {
	Cue(ev CueEvent)
}

type cueSinks []CueSink

func (s cueSinks) Cue(ev CueEvent) {
	for _, sink := range s {
		sink.Cue(ev)
	}
}

type logCues struct {
	cfg *Config
}

func (l logCues) Cue(ev CueEvent) {
	if ev.Cue == duel.CueTick {
		return
	}
	logf(l.cfg, "CUE: %s in room %s (duel %s)", ev.Cue, ev.Room, ev.Duel)
}

// mqttCues publishes every cue to {topic}/room/{room}/cue so external
// buzzers and lights can follow the game.
type mqttCues struct {
	client paho.Client
	topic  string
}

func newMQTTCues(ctx context.Context, broker, topic string) (*mqttCues, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("quizduel-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Error("mqtt connection lost", "broker", broker, "error", err)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(timeout) && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", broker, token.Error())
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
	}()

	return &mqttCues{
		client: client,
		topic:  strings.Trim(topic, "/"),
	}, nil
}

func (m *mqttCues) Topic(room string) string {
	return m.topic + "/room/" + room + "/cue"
}

func (m *mqttCues) Cue(ev CueEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	token := m.client.Publish(m.Topic(ev.Room), 0, false, payload)
	go func() {
		if token.WaitTimeout(timeout) && token.Error() != nil {
			logger.Warn("mqtt publish failed", "room", ev.Room, "cue", ev.Cue, "error", token.Error())
		}
	}()
}

func openCueSinks(ctx context.Context, cfg *Config) (CueSink, error) {
	sinks := cueSinks{logCues{cfg: cfg}}

	if cfg.mqttBroker != "" {
		m, err := newMQTTCues(ctx, cfg.mqttBroker, cfg.mqttTopic)
		if err != nil {
			return nil, err
		}
		logf(cfg, "CUES: Publishing to %s on %s", m.topic, cfg.mqttBroker)
		sinks = append(sinks, m)
	}

	return sinks, nil
}
