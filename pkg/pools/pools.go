// Package pools provides object pooling for reducing GC pressure.
//
// This package contains pool implementations for buffers used on the
// wire-protocol and log-append hot paths:
//
//   - BytePool: size-class byte slice pooling, used for request frame bodies
//   - BufferBuilder: pooled frame construction, used for client request
//     frames and operation-log frames
package pools
