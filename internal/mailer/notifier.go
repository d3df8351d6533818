package mailer

import (
	"log"
)

// Notifier decouples mail delivery from the request path. Push is
// non-blocking; delivery failures are logged and never propagate back to the
// submission that triggered them.
type Notifier struct {
	ch     chan Notification
	stop   chan struct{}
	done   chan struct{}
	sender Sender
	to     []string
}

func NewNotifier(sender Sender, to []string, bufferSize int) *Notifier {
	n := &Notifier{
		ch:     make(chan Notification, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		sender: sender,
		to:     to,
	}
	go n.run()
	return n
}

// Push queues a notification without blocking. Drops the notification if the
// buffer is full.
func (n *Notifier) Push(note Notification) {
	select {
	case n.ch <- note:
	default:
		log.Printf("mailer: notification buffer full, dropping alert for %q", note.ProjectTitle)
	}
}

// Shutdown delivers anything still queued and returns.
func (n *Notifier) Shutdown() {
	close(n.stop)
	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)
	for {
		select {
		case note := <-n.ch:
			n.deliver(note)
		case <-n.stop:
			for {
				select {
				case note := <-n.ch:
					n.deliver(note)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(note Notification) {
	if len(n.to) == 0 {
		return
	}
	subject, html, text := note.Render()
	if err := n.sender.Send(n.to, subject, html, text); err != nil {
		log.Printf("mailer: notification failed: %v", err)
	}
}
