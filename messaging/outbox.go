package messaging

import (
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"nodeconsole/protocol"
	"nodeconsole/store"
)

// DefaultDrainInterval is used when the configured interval is not positive.
const DefaultDrainInterval = 5 * time.Second

const drainBatch = 50

// Sent messages are kept this long for inspection, checked once per
// purgeEvery.
const (
	sentRetention = 24 * time.Hour
	purgeEvery    = time.Hour
)

// Outbox is the persistence the drainer reads from.
type Outbox interface {
	ListPendingOutbox(limit int) ([]*store.OutboxMessage, error)
	AckOutbox(ids ...int64) error
	IncrementOutboxRetries(id int64) error
	PurgeSentOutbox(age time.Duration) (int64, error)
}

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       Outbox
	client   Publisher
	interval time.Duration
	clock    clockwork.Clock
	stopChan chan struct{}
	wg       sync.WaitGroup

	lastPurge time.Time
}

// NewOutboxDrainer creates a new outbox drainer. A nil clock uses real time.
func NewOutboxDrainer(db Outbox, client Publisher, interval time.Duration, clock clockwork.Clock) *OutboxDrainer {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OutboxDrainer{
		db:       db,
		client:   client,
		interval: interval,
		clock:    clock,
		stopChan: make(chan struct{}),
	}
}

// Start begins the outbox drain loop.
func (d *OutboxDrainer) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Stop stops the outbox drain loop.
func (d *OutboxDrainer) Stop() {
	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
	d.wg.Wait()
}

func (d *OutboxDrainer) drainLoop() {
	defer d.wg.Done()

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.Chan():
			d.Drain()
			d.maybePurge()
		}
	}
}

// Drain sends one batch of pending messages and returns how many were acked.
func (d *OutboxDrainer) Drain() int {
	if !d.client.IsConnected() {
		return 0
	}

	msgs, err := d.db.ListPendingOutbox(drainBatch)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return 0
	}

	var acked []int64
	for _, msg := range msgs {
		if env, err := protocol.Decode(msg.Payload); err == nil && protocol.IsExpired(env, d.clock.Now()) {
			log.Printf("outbox: dropping expired msg %d (%s)", msg.ID, msg.MsgType)
			acked = append(acked, msg.ID)
			continue
		}
		if err := d.client.Publish(msg.Topic, msg.Payload); err != nil {
			log.Printf("outbox: publish msg %d (%s): %v", msg.ID, msg.MsgType, err)
			if err := d.db.IncrementOutboxRetries(msg.ID); err != nil {
				log.Printf("outbox: bump retries %d: %v", msg.ID, err)
			} else if msg.Retries+1 >= store.MaxOutboxRetries {
				log.Printf("outbox: parked msg %d after %d failed publishes", msg.ID, msg.Retries+1)
			}
			continue
		}
		acked = append(acked, msg.ID)
	}
	// A failed ack means the batch is sent again next tick; subscribers
	// dedupe on the envelope id.
	if err := d.db.AckOutbox(acked...); err != nil {
		log.Printf("outbox: ack %d msgs: %v", len(acked), err)
		return 0
	}
	return len(acked)
}

func (d *OutboxDrainer) maybePurge() {
	now := d.clock.Now()
	if !d.lastPurge.IsZero() && now.Sub(d.lastPurge) < purgeEvery {
		return
	}
	d.lastPurge = now
	n, err := d.db.PurgeSentOutbox(sentRetention)
	if err != nil {
		log.Printf("outbox: purge sent: %v", err)
		return
	}
	if n > 0 {
		log.Printf("outbox: purged %d sent msgs", n)
	}
}
