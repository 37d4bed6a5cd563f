// Package mqtt provides per-session MQTT publishing for the telemetry agent.
//
// A Client represents exactly one broker session. It never reconnects on
// its own: when the session fails, the owning sink loop closes it, waits
// out its backoff and calls Connect again with a fresh client identity.
// This keeps every retry a clean rebuild with no partial-session reuse.
//
// # Client identity
//
// Brokers reject or kick a second session using a client ID that is still
// registered. SessionClientID derives a per-attempt ID from the configured
// one plus a millisecond suffix so successive sessions never collide.
//
// # Security Considerations
//
//   - With TLS enabled the broker certificate is verified against the
//     system CA bundle; verification is never skipped
//   - Certificate validity depends on the host clock, so the agent runs its
//     one-shot time sync before any sink connects
//   - Credentials are sent only if a username is configured
//
// # Usage
//
//	id := mqtt.SessionClientID(s.MQTT.ClientID, time.Now())
//	client, err := mqtt.Connect(ctx, s.MQTT, id)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(ctx, s.MQTT.Topic, payload)
package mqtt
