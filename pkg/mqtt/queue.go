// Package mqtt wraps the MQTT client used to mirror link traffic to
// ground monitors.
package mqtt

import (
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is called with the topic, stripped of the queue's prefix.
type Handler func(topic string, payload []byte)

// ConnectHandler observes connect and disconnect events.
type ConnectHandler func(*Queue)

// Queue is an MQTT client whose topics are relative to TopicPrefix.
type Queue struct {
	Client       paho.Client
	TopicPrefix  string
	OnConnect    ConnectHandler
	OnDisconnect ConnectHandler

	lock sync.RWMutex
	subs map[string][]*Subscription
	seq  int
}

// Subscription is one handler on a topic filter.
type Subscription struct {
	Token paho.Token

	queue   *Queue
	id      int
	filter  string
	handler Handler
}

// MatchTopic reports whether topic matches an MQTT filter with
// + and trailing # wildcards.
func MatchTopic(topic, filter string) bool {
	levels, parts := strings.Split(topic, "/"), strings.Split(filter, "/")
	for i, part := range parts {
		if part == "#" && i == len(parts)-1 {
			return true
		}
		if i >= len(levels) {
			return false
		}
		if part != "+" && part != levels[i] {
			return false
		}
	}
	return len(levels) == len(parts)
}

// ClientOptionsFromURL parses mqtt://[user:pass@]host:port/prefix/?client-id=id
// into client options and the topic prefix.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// NewQueue creates a Queue. options gains the queue's connection handlers.
func NewQueue(options *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(q.onConnect)
	options.SetConnectionLostHandler(q.onConnectionLost)
	q.Client = paho.NewClient(options)
	return q
}

// NewQueueFromURL creates a Queue from a broker URL.
func NewQueueFromURL(brokerURL string) (*Queue, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return NewQueue(opts, prefix), nil
}

// Connect starts connecting.
func (q *Queue) Connect() paho.Token {
	return q.Client.Connect()
}

// Close implements io.Closer.
func (q *Queue) Close() error {
	q.Client.Disconnect(250)
	return nil
}

// Sub adds handler for a topic filter.
func (q *Queue) Sub(filter string, handler Handler) *Subscription {
	q.lock.Lock()
	if q.subs == nil {
		q.subs = make(map[string][]*Subscription)
	}
	q.seq++
	sub := &Subscription{queue: q, id: q.seq, filter: filter, handler: handler}
	first := len(q.subs[filter]) == 0
	q.subs[filter] = append(q.subs[filter], sub)
	q.lock.Unlock()

	if first && q.Client != nil {
		glog.V(2).Infof("SUB %q", q.TopicPrefix+filter)
		sub.Token = q.Client.Subscribe(q.TopicPrefix+filter, 0, q.dispatch)
	}
	return sub
}

// Pub publishes at QoS 0.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.PubWith(topic, payload, 0, false)
}

// PubWith publishes with QoS and retain flag.
func (q *Queue) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	glog.V(3).Infof("PUB %q %d bytes", q.TopicPrefix+topic, len(payload))
	return q.Client.Publish(q.TopicPrefix+topic, qos, retain, payload)
}

func (q *Queue) filters() map[string]byte {
	q.lock.RLock()
	defer q.lock.RUnlock()
	filters := make(map[string]byte, len(q.subs))
	for filter := range q.subs {
		filters[q.TopicPrefix+filter] = 0
	}
	return filters
}

func (q *Queue) onConnect(paho.Client) {
	glog.Info("mqtt connected")
	if filters := q.filters(); len(filters) > 0 {
		glog.V(2).Infof("SUB %v", filters)
		q.Client.SubscribeMultiple(filters, q.dispatch)
	}
	if h := q.OnConnect; h != nil {
		h(q)
	}
}

func (q *Queue) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("mqtt connection lost: %v", err)
	if h := q.OnDisconnect; h != nil {
		h(q)
	}
}

func (q *Queue) dispatch(_ paho.Client, msg paho.Message) {
	q.deliver(msg.Topic(), msg.Payload())
}

func (q *Queue) deliver(topic string, payload []byte) {
	if !strings.HasPrefix(topic, q.TopicPrefix) {
		return
	}
	topic = topic[len(q.TopicPrefix):]
	glog.V(2).Infof("RCV %q", topic)
	var handlers []Handler
	q.lock.RLock()
	for filter, subs := range q.subs {
		if MatchTopic(topic, filter) {
			for _, sub := range subs {
				handlers = append(handlers, sub.handler)
			}
		}
	}
	q.lock.RUnlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

// Close removes the handler, unsubscribing when it was the last one
// on its filter.
func (s *Subscription) Close() error {
	q := s.queue
	q.lock.Lock()
	subs := q.subs[s.filter]
	for n, sub := range subs {
		if sub.id == s.id {
			subs = append(subs[:n], subs[n+1:]...)
			break
		}
	}
	last := len(subs) == 0
	if last {
		delete(q.subs, s.filter)
	} else {
		q.subs[s.filter] = subs
	}
	q.lock.Unlock()
	if !last || q.Client == nil {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", q.TopicPrefix+s.filter)
	token := q.Client.Unsubscribe(q.TopicPrefix + s.filter)
	token.Wait()
	return token.Error()
}
