package mqtt

import (
	"fmt"
	"sort"
)

// Subscribe adds a topic filter at the configured QoS.
//
// Matching messages are delivered on the Events channel. Subscribing to a
// filter that is already tracked is a no-op.
//
// Parameters:
//   - topic: The topic filter, may include + and # wildcards
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Subscribe(topic string) error {
	if err := validateFilter(topic); err != nil {
		return err
	}

	client := c.current()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	if c.HasSubscription(topic) {
		return nil
	}

	// No per-filter route: every PUBLISH reaches the default handler exactly
	// once even when several tracked filters overlap.
	token := client.Subscribe(topic, byte(c.cfg.QoS), nil)
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = struct{}{}
	c.subMu.Unlock()

	return nil
}

// Unsubscribe removes a topic filter.
//
// Parameters:
//   - topic: The exact filter that was subscribed to
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Unsubscribe(topic string) error {
	if err := validateFilter(topic); err != nil {
		return err
	}

	client := c.current()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	token := client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if the exact filter is tracked.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}

// trackedTopics returns the tracked filters in sorted order.
func (c *Client) trackedTopics() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	topics := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}
