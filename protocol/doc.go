// Package protocol turns the sweeps of one recording into named scalar
// metrics.
//
// Each stimulation protocol is a [Kind]. [New] builds the matching
// [Protocol] from an [Input] and a frozen [Config] snapshot, analyzing every
// sweep ("frame") once. [Protocol.Results] aggregates the enabled frames
// with NaN-tolerant statistics and [Provides] lists the metric names a kind
// can report without looking at any data.
//
// Values are computed in SI units and divided by the configured [Scale]
// before they are reported, so the defaults yield mV, MOhm, ms and pA.
//
// Failures inside a sweep never abort the analysis. They degrade to NaN
// values on the frame, with the reason kept on the frame's Err field where
// one exists. Only structural problems detected by [New] are fatal.
package protocol
