/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-22 13:34:55
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-29 10:17:42
 * @FilePath: \go-rtcc\media\pion.go
 * @Description: pion/webrtc 媒体适配 - 对等连接与音频轨的具体实现
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package media

import (
	"context"
	"sync/atomic"

	"github.com/kamalyes/go-rtcc/call"
	"github.com/kamalyes/go-rtcc/models"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// PionProvider 基于 pion/webrtc 的媒体能力提供方
// 音频采样由宿主通过 AudioSource.WriteSample 喂入，
// 采集设备的打开与编码由宿主侧负责
type PionProvider struct{}

// NewPionProvider 创建 pion 媒体提供方
func NewPionProvider() *PionProvider {
	return &PionProvider{}
}

// AcquireAudio 创建本地音频轨
func (p *PionProvider) AcquireAudio(_ context.Context) (call.AudioSource, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "rtcc",
	)
	if err != nil {
		return nil, err
	}
	src := &pionAudioSource{track: track}
	src.enabled.Store(true)
	return src, nil
}

// NewPeerConnection 构建对等连接
func (p *PionProvider) NewPeerConnection(cfg call.PeerConfig) (call.PeerConnection, error) {
	config := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}
	return &pionPeer{pc: pc}, nil
}

// pionAudioSource 本地音频轨
// 静音时丢弃写入的采样，不触碰轨道本身
type pionAudioSource struct {
	track   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
}

// WriteSample 写入一帧音频采样，静音时静默丢弃
func (s *pionAudioSource) WriteSample(sample pionmedia.Sample) error {
	if !s.enabled.Load() {
		return nil
	}
	return s.track.WriteSample(sample)
}

// SetEnabled 切换采集开关
func (s *pionAudioSource) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled 当前采集开关
func (s *pionAudioSource) Enabled() bool {
	return s.enabled.Load()
}

// Close 停止采集
func (s *pionAudioSource) Close() error {
	s.enabled.Store(false)
	return nil
}

// pionPeer 对等连接包装
type pionPeer struct {
	pc *webrtc.PeerConnection
}

// AddAudioSource 挂载本地音频轨
func (p *pionPeer) AddAudioSource(src call.AudioSource) error {
	pionSrc, ok := src.(*pionAudioSource)
	if !ok {
		return webrtc.ErrUnsupportedCodec
	}
	_, err := p.pc.AddTrack(pionSrc.track)
	return err
}

// OnICECandidate 注册本地候选产出回调
func (p *pionPeer) OnICECandidate(handler func(candidate models.ICECandidate)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// 候选收集完成时回调会携带nil
		if c == nil {
			return
		}
		init := c.ToJSON()
		candidate := models.ICECandidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			candidate.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			candidate.SDPMLineIndex = *init.SDPMLineIndex
		}
		handler(candidate)
	})
}

// OnRemoteAudio 注册远端音频到达回调
func (p *pionPeer) OnRemoteAudio(handler func(sink call.RemoteAudioSink)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		handler(&pionRemoteSink{track: track, receiver: receiver})
	})
}

// CreateOffer 生成提议并设为本地描述
func (p *pionPeer) CreateOffer(ctx context.Context) (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	if err := p.waitGathering(ctx); err != nil {
		return "", err
	}
	return p.pc.LocalDescription().SDP, nil
}

// CreateAnswer 生成应答并设为本地描述
func (p *pionPeer) CreateAnswer(ctx context.Context) (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	if err := p.waitGathering(ctx); err != nil {
		return "", err
	}
	return p.pc.LocalDescription().SDP, nil
}

// SetRemoteDescription 应用远端描述
func (p *pionPeer) SetRemoteDescription(kind models.SDPKind, sdp string) error {
	sdpType := webrtc.SDPTypeOffer
	if kind == models.SDPKindAnswer {
		sdpType = webrtc.SDPTypeAnswer
	}
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: sdp})
}

// AddICECandidate 应用远端候选
func (p *pionPeer) AddICECandidate(candidate models.ICECandidate) error {
	init := webrtc.ICECandidateInit{Candidate: candidate.Candidate}
	if candidate.SDPMid != "" {
		mid := candidate.SDPMid
		init.SDPMid = &mid
	}
	if candidate.SDPMLineIndex != 0 {
		idx := candidate.SDPMLineIndex
		init.SDPMLineIndex = &idx
	}
	return p.pc.AddICECandidate(init)
}

// Close 关闭连接
func (p *pionPeer) Close() error {
	return p.pc.Close()
}

// waitGathering 等待候选收集完成，描述随trickle逐步完整
func (p *pionPeer) waitGathering(ctx context.Context) error {
	done := webrtc.GatheringCompletePromise(p.pc)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pionRemoteSink 远端音频落点
type pionRemoteSink struct {
	track    *webrtc.TrackRemote
	receiver *webrtc.RTPReceiver
}

// Track 远端音频轨，宿主侧从此读取采样播放
func (s *pionRemoteSink) Track() *webrtc.TrackRemote {
	return s.track
}

// Close 停止接收
func (s *pionRemoteSink) Close() error {
	return s.receiver.Stop()
}
