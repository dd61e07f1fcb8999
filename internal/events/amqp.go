package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"pennywise/internal/logger"
)

const (
	publishTimeout      = 5 * time.Second
	reconnectBackoff    = time.Second
	maxReconnectBackoff = 30 * time.Second
)

// ErrNotConnected is returned by Publish while the broker connection is being re-established.
var ErrNotConnected = errors.New("amqp: not connected")

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// session is one broker connection with its publishing channel. closed
// receives once when either the connection or the channel goes away.
type session struct {
	channel publishChannel
	close   func() error
	closed  <-chan *amqp091.Error
}

// AMQPPublisher publishes events to a durable topic exchange, routed by event name.
// A lost connection is redialled in the background; publishes fail fast with
// ErrNotConnected until it is back.
type AMQPPublisher struct {
	mu       sync.Mutex
	current  *session
	exchange string

	dial    func() (*session, error)
	backoff time.Duration

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewAMQPPublisher dials url and declares exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	return newAMQPPublisher(exchange, func() (*session, error) {
		return dialSession(url, exchange)
	}, reconnectBackoff)
}

func newAMQPPublisher(exchange string, dial func() (*session, error), backoff time.Duration) (*AMQPPublisher, error) {
	s, err := dial()
	if err != nil {
		return nil, err
	}

	p := &AMQPPublisher{
		current:  s,
		exchange: exchange,
		dial:     dial,
		backoff:  backoff,
		done:     make(chan struct{}),
	}
	p.wg.Add(1)
	go p.watch(s)
	return p, nil
}

func dialSession(url, exchange string) (*session, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	// Notification channels must be buffered or the library blocks on shutdown.
	connClosed := conn.NotifyClose(make(chan *amqp091.Error, 1))
	chanClosed := channel.NotifyClose(make(chan *amqp091.Error, 1))
	closed := make(chan *amqp091.Error, 1)
	go func() {
		select {
		case err := <-connClosed:
			closed <- err
		case err := <-chanClosed:
			closed <- err
		}
	}()

	return &session{
		channel: channel,
		close: func() error {
			channel.Close()
			return conn.Close()
		},
		closed: closed,
	}, nil
}

// watch redials whenever the current session closes, until Close is called.
func (p *AMQPPublisher) watch(s *session) {
	defer p.wg.Done()
	log := logger.Named("events")

	for {
		select {
		case <-p.done:
			return
		case reason := <-s.closed:
			log.Warnw("AMQP connection lost, reconnecting", "exchange", p.exchange, "reason", reason)
		}

		p.mu.Lock()
		if p.current == s {
			p.current = nil
		}
		p.mu.Unlock()
		s.close()

		next, ok := p.redial()
		if !ok {
			return
		}
		s = next
		log.Infow("AMQP connection restored", "exchange", p.exchange)
	}
}

func (p *AMQPPublisher) redial() (*session, bool) {
	wait := p.backoff
	for {
		select {
		case <-p.done:
			return nil, false
		case <-time.After(wait):
		}

		s, err := p.dial()
		if err != nil {
			logger.Named("events").Warnw("AMQP reconnect failed", "exchange", p.exchange, "error", err)
			if wait *= 2; wait > maxReconnectBackoff {
				wait = maxReconnectBackoff
			}
			continue
		}

		p.mu.Lock()
		select {
		case <-p.done:
			p.mu.Unlock()
			s.close()
			return nil, false
		default:
		}
		p.current = s
		p.mu.Unlock()
		return s, true
	}
}

// Publish sends event as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.JSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// Channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return fmt.Errorf("publish %s: %w", event.Name, ErrNotConnected)
	}

	err = p.current.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		event.Name, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Name, err)
	}

	logger.Named("events").Debugw("published event",
		"event", event.Name,
		"user_id", event.UserID,
		"exchange", p.exchange,
	)
	return nil
}

// Close stops reconnecting and closes the current connection.
func (p *AMQPPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	err := p.current.close()
	p.current = nil
	return err
}
