package discovery

// heartbeat runs once per scheduling tick on the Run goroutine.
//
// Reconnection is level-triggered: whatever callbacks were or were not
// delivered, a transport that is neither connected nor connecting is asked
// to reconnect. A live transport is pinged instead.
func (o *Orchestrator) heartbeat() {
	connected := o.transport.IsConnected()

	if !connected {
		if o.State() == StateConnected || o.State() == StateSubscribed {
			// The disconnect callback was missed.
			o.handleDisconnected(nil)
		}
		if o.transport.IsConnecting() {
			o.setState(StateConnecting)
			return
		}
		o.logger.Debug("reconnecting to bus")
		o.stats.Reconnects.Add(1)
		if err := o.transport.Reconnect(); err != nil {
			o.logger.Warn("reconnect request failed", "error", err)
			return
		}
		o.setState(StateConnecting)
		return
	}

	if o.State() == StateDisconnected || o.State() == StateConnecting {
		// The connect callback was missed.
		o.handleConnected()
	}
	if o.State() == StateConnected && !o.subscribePending {
		o.resubscribe()
	}
	if err := o.transport.Ping(); err != nil {
		o.logger.Debug("ping failed", "error", err)
	}
}
