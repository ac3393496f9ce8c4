// Package mqtt provides the MQTT client used by DEWHOME Core.
//
// Core publishes retained device states and action execution events, and
// listens for device commands from other home-automation software:
//
//	dewhome/state/device/{id}     {"device_id","state","pin_number","source","timestamp"}
//	dewhome/command/device/{id}   {"action":"high|low|toggle"}
//	dewhome/event/action/{id}     execution record
//	dewhome/system/status         {"status":"online|offline",...} (also the LWT)
//
// The client reconnects automatically and restores its subscriptions.
package mqtt
